package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/word-guess-backend/internal/config"
	"github.com/DoyleJ11/word-guess-backend/internal/engine"
	"github.com/DoyleJ11/word-guess-backend/internal/history"
	"github.com/DoyleJ11/word-guess-backend/internal/httpapi"
	"github.com/DoyleJ11/word-guess-backend/internal/hub"
	"github.com/DoyleJ11/word-guess-backend/internal/lobby"
	"github.com/DoyleJ11/word-guess-backend/internal/router"
	"github.com/DoyleJ11/word-guess-backend/internal/words"
	"github.com/DoyleJ11/word-guess-backend/internal/ws"
)

// NewLogger returns a JSON production logger, or a console one when verbose.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type Server struct {
	cfg   *config.Config
	log   *zap.Logger
	hub   *hub.Hub
	store *history.Store // nil when the archive is disabled
	http  *http.Server
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	rules := engine.DefaultRules()
	rules.MaxRounds = cfg.MaxRounds

	bank := words.NewDefaultBank()
	if cfg.WordsFile != "" {
		b, err := words.LoadBank(cfg.WordsFile)
		if err != nil {
			return nil, fmt.Errorf("load words: %w", err)
		}
		bank = b
	}
	log.Info("word catalog loaded", zap.Int("words", bank.Len()))

	lobbyOpts := []lobby.Option{
		lobby.WithRules(rules),
		lobby.WithWordBank(bank),
		lobby.WithLogger(log),
	}

	s := &Server{cfg: cfg, log: log}
	var results httpapi.ResultsSource
	if cfg.DatabaseURL != "" {
		store, err := history.Open(cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		s.store = store
		results = store
		lobbyOpts = append(lobbyOpts, lobby.WithRecorder(store))
		log.Info("results archive enabled")
	}

	s.hub = hub.NewHub(ctx, hub.WithLogger(log), hub.WithLobbyOptions(lobbyOpts...))
	rt := router.New(s.hub, log, router.WithOutboxSize(cfg.OutboxSize))

	wsOpts := ws.DefaultOptions()
	wsOpts.OriginPatterns = cfg.Origins
	wsOpts.PingInterval = cfg.PingInterval
	wsOpts.Rate = rate.Limit(cfg.Rate)
	wsOpts.Burst = cfg.Burst

	s.http = &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:     s.hub,
			Router:  rt,
			Results: results,
			Log:     log,
			WS:      wsOpts,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.http.Handler }

// Serve runs until ctx is cancelled or the listener fails, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(ctx)
	s.hub.Shutdown()
	if s.store != nil {
		err = multierr.Append(err, s.store.Close())
	}
	return err
}

func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	s, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
