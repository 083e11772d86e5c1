// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/lobbyd/internal/config"
	xglog "github.com/ManuGH/lobbyd/internal/log"
)

// PerformStartupChecks validates the environment before the daemon starts.
func PerformStartupChecks(cfg config.AppConfig, logger zerolog.Logger) error {
	logger = logger.With().Str(xglog.FieldComponent, "startup-check").Logger()

	if cfg.Admin.ListenAddr != "" {
		if err := checkListenAddr(cfg.Admin.ListenAddr); err != nil {
			return fmt.Errorf("admin listen address: %w", err)
		}
	}

	switch strings.ToLower(cfg.Store.Backend) {
	case "", "memory":
		logger.Warn().Msg("history store is in memory; match history is lost on restart")
	default:
		dir := cfg.Store.Path
		if strings.ToLower(cfg.Store.Backend) == "sqlite" {
			dir = filepath.Dir(dir)
		}
		if err := checkWritableDir(dir); err != nil {
			return fmt.Errorf("store path: %w", err)
		}
	}

	if cfg.Lobby.Role == "dedicated" && cfg.Dedicated.Provisioned {
		if _, _, err := net.SplitHostPort(cfg.Dedicated.Address); err != nil {
			return fmt.Errorf("dedicated address %q: %w", cfg.Dedicated.Address, err)
		}
	}

	logger.Info().Msg("startup checks passed")
	return nil
}

func checkListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q in %q", port, addr)
	}
	return nil
}

// checkWritableDir creates dir if missing and probes it with a temp file.
func checkWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("path is empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	probe := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", dir, err)
	}
	return os.Remove(probe)
}
