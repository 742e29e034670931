package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/trivia-backend/internal/questions"
	"github.com/DoyleJ11/trivia-backend/internal/server"
	"github.com/DoyleJ11/trivia-backend/internal/ws"
)

type Deps struct {
	Accounts Scoreboard
	Bank     *questions.Bank
	Server   *server.Server
	Log      *zap.Logger
	WS       ws.Options
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/highscores", Highscores(d.Accounts, log))
	r.Get("/logged", LoggedIn(d.Accounts, log))
	r.Get("/stats", Stats(d.Accounts, d.Bank, d.Server, log))
	r.Get("/ws", ws.Handler(d.Server, log.Named("ws"), d.WS))
	return r
}
