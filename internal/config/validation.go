// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Validate checks ranges and enumerations. All failures are joined and wrap
// ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch cfg.Log.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		add("log.level %q", cfg.Log.Level)
	}
	if cfg.Admin.RateLimit < 0 {
		add("admin.rateLimit must be >= 0")
	}

	lb := cfg.Lobby
	switch lb.Role {
	case "interactive", "dedicated":
	default:
		add("lobby.role %q (want interactive|dedicated)", lb.Role)
	}
	if lb.PublicSlots < 0 || lb.PrivateSlots < 0 {
		add("lobby slots must be >= 0")
	}
	if total := lb.PublicSlots + lb.PrivateSlots; total < 1 || total > 64 {
		add("lobby capacity %d out of range [1,64]", total)
	}
	if lb.MinPlayers < 1 || lb.MinPlayers > lb.PublicSlots+lb.PrivateSlots {
		add("lobby.minPlayers %d out of range", lb.MinPlayers)
	}
	if lb.MinRank > lb.MaxRank {
		add("lobby.minRank %d above maxRank %d", lb.MinRank, lb.MaxRank)
	}
	if _, err := LanguageTag(lb.Language); err != nil {
		add("lobby.language: %v", err)
	}
	for name, d := range map[string]time.Duration{
		"initialCountdown":    lb.InitialCountdown,
		"subsequentCountdown": lb.SubsequentCountdown,
		"reservationTimeout":  lb.ReservationTimeout,
		"leaveTimeout":        lb.LeaveTimeout,
		"moveTimeout":         lb.MoveTimeout,
		"tickInterval":        lb.TickInterval,
	} {
		if d <= 0 {
			add("lobby.%s must be > 0", name)
		}
	}
	if lb.InitialCountdown > 255*time.Second || lb.SubsequentCountdown > 255*time.Second {
		add("lobby countdowns must be <= 255s")
	}
	if lb.BalanceWindow < 0 || lb.BalanceWindow >= lb.InitialCountdown {
		add("lobby.balanceWindow must be in [0, initialCountdown)")
	}
	if lb.PacketRate <= 0 || lb.PacketBurst < 1 {
		add("lobby packet rate limits must be positive")
	}
	for i, e := range lb.Rotation {
		if e.Map == "" || e.Mode == "" {
			add("lobby.rotation[%d] needs map and mode", i)
		}
	}
	if cfg.Voting.Enabled && len(lb.Rotation) < 2 {
		add("voting requires at least two rotation entries")
	}
	if cfg.Voting.CloseLead < 0 {
		add("voting.closeLead must be >= 0")
	}
	if cfg.BestHost.Enabled && cfg.BestHost.Interval <= 0 {
		add("bestHost.interval must be > 0")
	}

	switch cfg.Store.Backend {
	case "memory":
	case "sqlite", "badger":
		if cfg.Store.Path == "" {
			add("store.path is required for %s", cfg.Store.Backend)
		}
	default:
		add("store.backend %q (want memory|sqlite|badger)", cfg.Store.Backend)
	}
	if cfg.Directory.Enabled {
		if cfg.Directory.Addr == "" {
			add("directory.addr is required when enabled")
		}
		if cfg.Directory.TTL <= 0 {
			add("directory.ttl must be > 0")
		}
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			add("telemetry.exporter %q (want grpc|http)", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.samplingRate must be in [0,1]")
		}
	}
	return errors.Join(errs...)
}

// LanguageTag parses a BCP 47 tag and reduces it to its base language.
func LanguageTag(s string) (language.Tag, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("parse %q: %w", s, err)
	}
	base, _ := tag.Base()
	return language.Make(base.String()), nil
}
