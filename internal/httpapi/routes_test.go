package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/trivia-backend/internal/accounts"
	"github.com/DoyleJ11/trivia-backend/internal/questions"
	"github.com/DoyleJ11/trivia-backend/internal/server"
	"github.com/DoyleJ11/trivia-backend/internal/types"
	ptypes "github.com/DoyleJ11/trivia-backend/pkg/types"
)

func newRouter(t *testing.T) (http.Handler, *accounts.Table) {
	t.Helper()
	tbl, err := accounts.NewTable(context.Background(), []accounts.Account{
		{ID: 1, Username: "alice", Password: "pw", Score: 10, Role: ptypes.RolePlayer},
		{ID: 2, Username: "bob", Password: "pw", Score: 30, Role: ptypes.RolePlayer},
		{ID: 3, Username: "carol", Password: "pw", Score: 20, Role: ptypes.RolePlayer},
	})
	require.NoError(t, err)
	t.Cleanup(tbl.Close)

	bank := questions.NewBank()
	_, err = bank.AddQuestion("1+1?", [4]string{"1", "2", "3", "4"}, "2")
	require.NoError(t, err)

	srv := server.New(tbl, bank, nil, server.Options{})
	t.Cleanup(srv.Shutdown)
	return SetupRoutes(Deps{Accounts: tbl, Bank: bank, Server: srv}), tbl
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newRouter(t)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}

func TestHighscores(t *testing.T) {
	h, _ := newRouter(t)

	rec := get(t, h, "/highscores?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body types.HighscoresResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []types.Highscore{
		{Rank: 1, Username: "bob", Score: 30},
		{Rank: 2, Username: "carol", Score: 20},
	}, body.Scores)
}

func TestHighscores_BadLimit(t *testing.T) {
	h, _ := newRouter(t)
	for _, q := range []string{"0", "abc", "101"} {
		t.Run(q, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, get(t, h, "/highscores?limit="+q).Code)
		})
	}
}

func TestLoggedAndStats(t *testing.T) {
	h, tbl := newRouter(t)
	_, err := tbl.Login(context.Background(), "carol", "pw", ptypes.RolePlayer, "conn-1")
	require.NoError(t, err)

	rec := get(t, h, "/logged")
	require.Equal(t, http.StatusOK, rec.Code)
	var users types.LoggedInResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&users))
	assert.Equal(t, []string{"carol"}, users.Users)

	rec = get(t, h, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats types.StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, types.StatsResponse{Questions: 1, Connections: 0, LoggedIn: 1}, stats)
}

func TestScoresUnavailable(t *testing.T) {
	h, tbl := newRouter(t)
	tbl.Close()

	rec := get(t, h, "/highscores")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
