package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/word-guess-backend/internal/history"
	"github.com/DoyleJ11/word-guess-backend/internal/hub"
)

// ResultsSource serves archived games. Nil disables /results.
type ResultsSource interface {
	Recent(ctx context.Context, limit int) ([]history.GameResult, error)
}

const defaultResultsLimit = 20

type lobbyInfo struct {
	Code     string `json:"code"`
	Phase    string `json:"phase"`
	Players  int    `json:"players"`
	CanStart bool   `json:"canStart"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

func Healthz(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.Count(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Status  string `json:"status"`
			Lobbies int    `json:"lobbies"`
		}{Status: "ok", Lobbies: n})
	}
}

func GetLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))

		lb, err := h.Lookup(r.Context(), code)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		if lb == nil {
			writeError(w, http.StatusNotFound, "Lobby not found")
			return
		}
		v, err := lb.View(r.Context())
		if err != nil || v.Closed {
			writeError(w, http.StatusNotFound, "Lobby not found")
			return
		}

		writeJSON(w, http.StatusOK, lobbyInfo{
			Code:     v.Code,
			Phase:    string(v.State.Phase),
			Players:  len(v.State.Players),
			CanStart: v.State.CanStart,
		})
	}
}

func Results(src ResultsSource, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			writeError(w, http.StatusNotFound, "history disabled")
			return
		}

		limit := defaultResultsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		games, err := src.Recent(r.Context(), limit)
		if err != nil {
			log.Error("load results", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not load results")
			return
		}
		if games == nil {
			games = []history.GameResult{}
		}
		writeJSON(w, http.StatusOK, games)
	}
}

// requestLogger logs one line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
