// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/lobbyd/internal/api"
	"github.com/ManuGH/lobbyd/internal/bus"
	"github.com/ManuGH/lobbyd/internal/config"
	"github.com/ManuGH/lobbyd/internal/directory"
	"github.com/ManuGH/lobbyd/internal/health"
	"github.com/ManuGH/lobbyd/internal/history"
	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby"
	"github.com/ManuGH/lobbyd/internal/lobby/loopback"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/telemetry"
	"github.com/ManuGH/lobbyd/internal/version"
)

const serviceName = "lobbyd"

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the lobby daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), strings.TrimSpace(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	return cmd
}

// runDaemon wires the daemon and blocks until ctx is done or a component
// fails.
func runDaemon(ctx context.Context, configPath string) error {
	xglog.Configure(xglog.Config{Level: "info", Service: serviceName, Version: version.Version})
	logger := xglog.WithComponent("daemon")

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "config.load_failed").Str("config_path", configPath).Msg("failed to load configuration")
		return err
	}
	xglog.Configure(xglog.Config{Level: cfg.Log.Level, Service: serviceName, Version: cfg.Version})
	logger = xglog.WithComponent("daemon")
	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("config_source", source).
		Str("role", cfg.Lobby.Role).
		Str("admin_addr", cfg.Admin.ListenAddr).
		Msg("starting lobbyd")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	if err := health.PerformStartupChecks(cfg, logger); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	store, err := history.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer func() { _ = store.Close() }()

	var adv *directory.Advertiser
	if cfg.Directory.Enabled {
		adv, err = directory.Dial(cfg.Directory, logger)
		if err != nil {
			return fmt.Errorf("directory: %w", err)
		}
		defer func() { _ = adv.Close() }()
	}

	events := bus.NewMemoryBus()
	l, fatal, err := buildLobby(ctx, cfg, store, events, logger)
	if err != nil {
		return err
	}

	holder := config.NewHolder(cfg, loader)
	reloads := make(chan config.AppConfig, 1)
	holder.RegisterListener(reloads)

	ready := health.NewManager(version.Version, logger)
	ready.Register(health.NewPingChecker("lobby", api.LobbyProbe(l)))
	ready.Register(health.NewPingChecker("history", func(ctx context.Context) error {
		_, err := store.RecentMatches(ctx, 1)
		return err
	}))

	apiDeps := api.Deps{Lobby: l, History: store, Health: ready, Logger: xglog.WithComponent("api")}
	if adv != nil {
		apiDeps.Directory = adv
		ready.Register(health.NewOptionalChecker("directory", adv.Ping))
	}
	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = serviceName
	}
	server := api.New(api.Config{
		ListenAddr:     cfg.Admin.ListenAddr,
		RateLimit:      cfg.Admin.RateLimit,
		Version:        version.Version,
		TracingService: tracing,
	}, apiDeps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Run(gctx) })
	g.Go(func() error { return history.NewRecorder(store, logger).Run(gctx, events) })
	if adv != nil {
		g.Go(func() error { return adv.Run(gctx, events) })
	}
	g.Go(func() error { return server.ListenAndServe(gctx) })
	g.Go(func() error { return applyReloads(gctx, l, reloads, logger) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-fatal:
			logger.Error().Err(err).Msg("lobby reported an unrecoverable error")
			return err
		}
	})
	if cfg.Lobby.Role == string(model.RoleDedicated) {
		g.Go(func() error { return hostInitialSession(gctx, l, cfg, logger) })
	}
	if err := holder.StartWatcher(gctx); err != nil {
		logger.Warn().Err(err).Msg("config watcher unavailable; hot reload disabled")
	}

	err = g.Wait()
	logger.Info().Err(err).Msg("lobbyd stopped")
	return err
}

// buildLobby creates the lobby on an in-process loopback service and
// restores the persisted rotation cursor.
func buildLobby(ctx context.Context, cfg config.AppConfig, store history.Store, events bus.Bus, logger zerolog.Logger) (*lobby.Lobby, <-chan error, error) {
	hub := loopback.NewHub(loopback.Options{Logger: &logger})
	lobbyLog := xglog.WithComponent("lobby")
	fatal := make(chan error, 1)

	lcfg := lobby.ConfigFrom(cfg)
	l, err := lobby.New(lcfg, lobby.Deps{
		Service:     hub.Endpoint(serviceName),
		Rank:        lobby.RankFrom(cfg),
		Provisioner: &loopback.Provisioner{Address: cfg.Dedicated.Address},
		Rotation:    lobby.RotationFrom(cfg.Lobby.Rotation),
		Events:      events,
		Logger:      &lobbyLog,
		Fatal: func(err error) {
			select {
			case fatal <- err:
			default:
			}
		},
	})
	if err != nil {
		return nil, nil, err
	}

	lctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cursor, ok, err := store.LoadCursor(lctx, lcfg.RotationKey)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("could not restore rotation cursor")
	case ok:
		l.SetRotationCursor(cursor)
		logger.Info().Str("rotation_key", lcfg.RotationKey).Int("cursor", cursor).Msg("rotation cursor restored")
	}
	return l, fatal, nil
}

// applyReloads pushes reloaded tuning into the lobby goroutine.
func applyReloads(ctx context.Context, l *lobby.Lobby, reloads <-chan config.AppConfig, logger zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case next := <-reloads:
			tuning := lobby.ConfigFrom(next)
			err := l.Do(ctx, func(l *lobby.Lobby) { l.ApplyTuning(tuning) })
			if errors.Is(err, lobby.ErrStopped) || errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				logger.Warn().Err(err).Msg("failed to apply reloaded tuning")
			}
		}
	}
}

// hostInitialSession opens the dedicated server's session at the current
// rotation entry.
func hostInitialSession(ctx context.Context, l *lobby.Lobby, cfg config.AppConfig, logger zerolog.Logger) error {
	if lobby.RotationFrom(cfg.Lobby.Rotation).Len() == 0 {
		logger.Warn().Msg("dedicated role without rotation; not hosting")
		return nil
	}
	var findErr error
	err := l.Do(ctx, func(l *lobby.Lobby) {
		// An empty map hosts the current rotation entry.
		findErr = l.FindGame(lobby.CreateRequest{Matchmaking: cfg.Lobby.Matchmaking})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, lobby.ErrStopped) {
			return nil
		}
		return err
	}
	if findErr != nil {
		return fmt.Errorf("host initial session: %w", findErr)
	}
	logger.Info().Str("rotation_key", cfg.Lobby.RotationKey).Msg("hosting dedicated session")
	return nil
}
