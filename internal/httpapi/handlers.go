package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/trivia-backend/internal/accounts"
	"github.com/DoyleJ11/trivia-backend/internal/types"
)

const maxHighscoreLimit = 100

type Scoreboard interface {
	TopScores(ctx context.Context, n int) ([]accounts.Account, error)
	LoggedIn(ctx context.Context) ([]string, error)
}

type QuestionCounter interface {
	Len() int
}

type ConnectionCounter interface {
	ActiveConnections() int
}

func Highscores(board Scoreboard, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > maxHighscoreLimit {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = n
		}

		top, err := board.TopScores(r.Context(), limit)
		if err != nil {
			log.Error("top scores", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "scores unavailable")
			return
		}

		resp := types.HighscoresResponse{Scores: make([]types.Highscore, len(top))}
		for i, a := range top {
			resp.Scores[i] = types.Highscore{Rank: i + 1, Username: a.Username, Score: a.Score}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func LoggedIn(board Scoreboard, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := board.LoggedIn(r.Context())
		if err != nil {
			log.Error("logged in users", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "users unavailable")
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, types.LoggedInResponse{Users: names})
	}
}

func Stats(board Scoreboard, bank QuestionCounter, conns ConnectionCounter, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := board.LoggedIn(r.Context())
		if err != nil {
			log.Error("logged in users", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "stats unavailable")
			return
		}
		writeJSON(w, http.StatusOK, types.StatsResponse{
			Questions:   bank.Len(),
			Connections: conns.ActiveConnections(),
			LoggedIn:    len(names),
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}
