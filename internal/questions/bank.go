package questions

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
	"github.com/DoyleJ11/trivia-backend/pkg/types"
)

var ErrExhausted = errors.New("no eligible question left")
var ErrInvalidQuestion = errors.New("invalid question")
var ErrUnknownQuestion = errors.New("unknown question")

type Question struct {
	ID            int
	Text          string
	Answers       [4]string
	CorrectAnswer string
}

func (q Question) View() types.QuestionView {
	return types.QuestionView{ID: q.ID, Text: q.Text, Answers: q.Answers}
}

// Item is one question as delivered by a Source.
type Item struct {
	Text             string
	CorrectAnswer    string
	IncorrectAnswers [3]string
}

// Source supplies questions for bulk import.
type Source interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// Bank is an append-only question collection safe for concurrent use.
// Ids start at 1 and increase by one per insertion.
type Bank struct {
	mu        sync.RWMutex
	questions []Question
	texts     map[string]struct{}
	shuffle   func(answers []string)
}

func NewBank() *Bank {
	return &Bank{
		texts: make(map[string]struct{}),
		shuffle: func(a []string) {
			rand.Shuffle(len(a), func(i, j int) { a[i], a[j] = a[j], a[i] })
		},
	}
}

func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.questions)
}

func (b *Bank) Get(id int) (Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if id < 1 || id > len(b.questions) {
		return Question{}, fmt.Errorf("%w: %d", ErrUnknownQuestion, id)
	}
	return b.questions[id-1], nil
}

// RandomQuestion picks uniformly among questions whose id is not in excluding.
func (b *Bank) RandomQuestion(excluding map[int]struct{}) (Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	eligible := make([]int, 0, len(b.questions))
	for i := range b.questions {
		if _, skip := excluding[i+1]; !skip {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return Question{}, ErrExhausted
	}
	return b.questions[eligible[rand.IntN(len(eligible))]], nil
}

func (b *Bank) AddQuestion(text string, answers [4]string, correct string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: empty text", ErrInvalidQuestion)
	}
	if slices.ContainsFunc(append([]string{text}, answers[:]...), reserved) {
		return 0, fmt.Errorf("%w: contains a protocol separator", ErrInvalidQuestion)
	}
	if !slices.Contains(answers[:], correct) {
		return 0, fmt.Errorf("%w: correct answer %q is not among the answers", ErrInvalidQuestion, correct)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.fitsLocked(text, answers) {
		return 0, fmt.Errorf("%w: question too long to send", ErrInvalidQuestion)
	}
	return b.appendLocked(text, answers, correct), nil
}

// fitsLocked reports whether the next question's YOUR_QUESTION payload, which
// carries its id, stays within one frame.
func (b *Bank) fitsLocked(text string, answers [4]string) bool {
	view := types.QuestionView{ID: len(b.questions) + 1, Text: text, Answers: answers}
	return len(view.Payload()) <= protocol.MaxPayloadSize
}

func (b *Bank) appendLocked(text string, answers [4]string, correct string) int {
	id := len(b.questions) + 1
	b.questions = append(b.questions, Question{ID: id, Text: text, Answers: answers, CorrectAnswer: correct})
	b.texts[text] = struct{}{}
	return id
}

// reserved reports whether s cannot travel inside a question payload.
func reserved(s string) bool {
	return strings.ContainsAny(s, "#|")
}

func (b *Bank) CheckAnswer(id int, submitted string) (bool, error) {
	q, err := b.Get(id)
	if err != nil {
		return false, err
	}
	return q.CorrectAnswer == submitted, nil
}

// Import appends source items with shuffled answers. Items whose text is already in
// the bank, that repeat an answer, or that would not fit in a frame are skipped. It returns the number added.
func (b *Bank) Import(items []Item) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0
	for _, it := range items {
		if strings.TrimSpace(it.Text) == "" {
			continue
		}
		if _, dup := b.texts[it.Text]; dup {
			continue
		}
		answers := []string{it.CorrectAnswer, it.IncorrectAnswers[0], it.IncorrectAnswers[1], it.IncorrectAnswers[2]}
		if reserved(it.Text) || slices.ContainsFunc(answers, reserved) {
			continue
		}
		if len(slices.Compact(slices.Sorted(slices.Values(answers)))) != len(answers) {
			continue
		}
		if !b.fitsLocked(it.Text, [4]string(answers)) {
			continue
		}
		b.shuffle(answers)
		b.appendLocked(it.Text, [4]string(answers), it.CorrectAnswer)
		added++
	}
	return added
}

// Load fetches from src and imports the result.
func (b *Bank) Load(ctx context.Context, src Source) (int, error) {
	items, err := src.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch questions: %w", err)
	}
	return b.Import(items), nil
}
