// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api is the admin and debug HTTP surface of lobbyd.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/lobbyd/internal/api/middleware"
	"github.com/ManuGH/lobbyd/internal/directory"
	"github.com/ManuGH/lobbyd/internal/health"
	"github.com/ManuGH/lobbyd/internal/history"
	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby"
)

const (
	doTimeout       = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Lobby is the part of *lobby.Lobby the server drives.
type Lobby interface {
	Snapshot() lobby.Status
	Do(ctx context.Context, fn func(*lobby.Lobby)) error
}

// MatchHistory lists finished matches.
type MatchHistory interface {
	RecentMatches(ctx context.Context, limit int) ([]history.Match, error)
}

// Directory lists advertised sessions.
type Directory interface {
	List(ctx context.Context) ([]directory.Advert, error)
}

type Config struct {
	ListenAddr string
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int
	Version   string
	// TracingService enables otelhttp spans under this name.
	TracingService string
}

// Deps are the collaborators of a Server. History, Directory and Health
// are optional.
type Deps struct {
	Lobby     Lobby
	History   MatchHistory
	Directory Directory
	Health    *health.Manager
	Logger    zerolog.Logger
}

type Server struct {
	cfg     Config
	deps    Deps
	log     zerolog.Logger
	handler http.Handler
	started time.Time
}

func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger.With().Str(xglog.FieldComponent, "api").Logger(),
		started: time.Now(),
	}
	if s.deps.Health == nil {
		s.deps.Health = health.NewManager(cfg.Version, deps.Logger)
	}
	s.handler = s.routes()
	return s
}

// LobbyProbe reports whether the lobby goroutine still accepts work.
func LobbyProbe(l Lobby) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return l.Do(ctx, func(*lobby.Lobby) {})
	}
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		Logger:         s.log,
		TracingService: s.cfg.TracingService,
		EnableMetrics:  true,
		EnableLogging:  true,
		RateLimit:      s.cfg.RateLimit,
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/session", s.handleCreate)
		r.Post("/session/join", s.handleJoin)
		r.Post("/session/leave", s.handleLeave)
		r.Post("/match/start", s.handleStart)
		r.Post("/match/end", s.handleEnd)
		r.Post("/vote/close", s.handleCloseVote)
		r.Get("/matches", s.handleMatches)
		r.Get("/directory", s.handleDirectory)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("admin server listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	s.log.Info().Msg("admin server stopped")
	return nil
}
