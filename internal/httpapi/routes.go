package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/word-guess-backend/internal/hub"
	"github.com/DoyleJ11/word-guess-backend/internal/router"
	"github.com/DoyleJ11/word-guess-backend/internal/ws"
)

type Deps struct {
	Hub     *hub.Hub
	Router  *router.Router
	Results ResultsSource // optional
	Log     *zap.Logger
	WS      ws.Options
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz(d.Hub))
	r.Get("/lobbies/{code}", GetLobby(d.Hub))
	r.Get("/results", Results(d.Results, d.Log))
	r.Get("/ws", ws.Handler(d.Router, d.Log, d.WS))
	return r
}
