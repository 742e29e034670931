package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/trivia-backend/internal/questions"
)

const DefaultOpenTDBURL = "https://opentdb.com/api.php"

var ErrUpstream = errors.New("question provider error")

// openTDBResponse matches the opentdb.com api.php body.
type openTDBResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Type             string   `json:"type"`
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// OpenTDB fetches multiple-choice questions from an Open Trivia DB compatible endpoint.
type OpenTDB struct {
	baseURL    string
	amount     int
	httpClient *http.Client
}

func NewOpenTDB(baseURL string, amount int) *OpenTDB {
	if baseURL == "" {
		baseURL = DefaultOpenTDBURL
	}
	if amount <= 0 {
		amount = 50
	}
	return &OpenTDB{
		baseURL: baseURL,
		amount:  amount,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (o *OpenTDB) Fetch(ctx context.Context) ([]questions.Item, error) {
	u, err := url.Parse(o.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse question url: %w", err)
	}
	q := u.Query()
	q.Set("amount", strconv.Itoa(o.amount))
	q.Set("type", "multiple")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var body openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if body.ResponseCode != 0 {
		return nil, fmt.Errorf("%w: response code %d", ErrUpstream, body.ResponseCode)
	}

	items := make([]questions.Item, 0, len(body.Results))
	for _, r := range body.Results {
		if r.Type != "" && r.Type != "multiple" {
			continue
		}
		if len(r.IncorrectAnswers) != 3 {
			continue
		}
		items = append(items, questions.Item{
			Text:          clean(r.Question),
			CorrectAnswer: clean(r.CorrectAnswer),
			IncorrectAnswers: [3]string{
				clean(r.IncorrectAnswers[0]),
				clean(r.IncorrectAnswers[1]),
				clean(r.IncorrectAnswers[2]),
			},
		})
	}
	return items, nil
}

// clean decodes HTML entities and normalizes to NFC so that the same question
// text compares equal across fetches.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(html.UnescapeString(s)))
}
