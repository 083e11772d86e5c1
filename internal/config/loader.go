// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads lobbyd configuration with precedence ENV > file > defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, empty for ENV-only configuration.
func (l *Loader) Path() string { return l.configPath }

// Load parses the file strictly, applies environment overrides and validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}
	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

// decodeStrict decodes one YAML document over cfg, rejecting unknown keys.
func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.Log.Level = ParseString(l.key("LOG_LEVEL"), cfg.Log.Level)

	cfg.Admin.ListenAddr = ParseString(l.key("ADMIN_LISTEN"), cfg.Admin.ListenAddr)
	cfg.Admin.RateLimit = ParseInt(l.key("ADMIN_RATE_LIMIT"), cfg.Admin.RateLimit)

	lb := &cfg.Lobby
	lb.Role = ParseString(l.key("LOBBY_ROLE"), lb.Role)
	lb.PublicSlots = ParseInt(l.key("LOBBY_PUBLIC_SLOTS"), lb.PublicSlots)
	lb.PrivateSlots = ParseInt(l.key("LOBBY_PRIVATE_SLOTS"), lb.PrivateSlots)
	lb.MinPlayers = ParseInt(l.key("LOBBY_MIN_PLAYERS"), lb.MinPlayers)
	lb.Ranked = ParseBool(l.key("LOBBY_RANKED"), lb.Ranked)
	lb.Matchmaking = ParseBool(l.key("LOBBY_MATCHMAKING"), lb.Matchmaking)
	lb.MinRank = ParseUint8(l.key("LOBBY_MIN_RANK"), lb.MinRank)
	lb.MaxRank = ParseUint8(l.key("LOBBY_MAX_RANK"), lb.MaxRank)
	lb.Language = ParseString(l.key("LOBBY_LANGUAGE"), lb.Language)
	lb.GameVersion = ParseUint32(l.key("LOBBY_GAME_VERSION"), lb.GameVersion)
	lb.Playlist = ParseUint32(l.key("LOBBY_PLAYLIST"), lb.Playlist)
	lb.Variant = ParseUint32(l.key("LOBBY_VARIANT"), lb.Variant)
	lb.RequiredContent = ParseUint32(l.key("LOBBY_REQUIRED_CONTENT"), lb.RequiredContent)
	lb.InitialCountdown = ParseDuration(l.key("LOBBY_INITIAL_COUNTDOWN"), lb.InitialCountdown)
	lb.SubsequentCountdown = ParseDuration(l.key("LOBBY_SUBSEQUENT_COUNTDOWN"), lb.SubsequentCountdown)
	lb.BalanceWindow = ParseDuration(l.key("LOBBY_BALANCE_WINDOW"), lb.BalanceWindow)
	lb.ReservationTimeout = ParseDuration(l.key("LOBBY_RESERVATION_TIMEOUT"), lb.ReservationTimeout)
	lb.PlaceholderTimeout = ParseDuration(l.key("LOBBY_PLACEHOLDER_TIMEOUT"), lb.PlaceholderTimeout)
	lb.LeaveTimeout = ParseDuration(l.key("LOBBY_LEAVE_TIMEOUT"), lb.LeaveTimeout)
	lb.MoveTimeout = ParseDuration(l.key("LOBBY_MOVE_TIMEOUT"), lb.MoveTimeout)
	lb.TickInterval = ParseDuration(l.key("LOBBY_TICK_INTERVAL"), lb.TickInterval)
	lb.PacketRate = ParseFloat(l.key("LOBBY_PACKET_RATE"), lb.PacketRate)
	lb.PacketBurst = ParseInt(l.key("LOBBY_PACKET_BURST"), lb.PacketBurst)
	lb.RotationKey = ParseString(l.key("LOBBY_ROTATION_KEY"), lb.RotationKey)

	cfg.Voting.Enabled = ParseBool(l.key("VOTING_ENABLED"), cfg.Voting.Enabled)
	cfg.Voting.CloseLead = ParseDuration(l.key("VOTING_CLOSE_LEAD"), cfg.Voting.CloseLead)

	bh := &cfg.BestHost
	bh.Enabled = ParseBool(l.key("BEST_HOST_ENABLED"), bh.Enabled)
	bh.Interval = ParseDuration(l.key("BEST_HOST_INTERVAL"), bh.Interval)
	bh.AfterJoin = ParseDuration(l.key("BEST_HOST_AFTER_JOIN"), bh.AfterJoin)
	bh.AfterStart = ParseDuration(l.key("BEST_HOST_AFTER_START"), bh.AfterStart)
	bh.AfterReturnToLobby = ParseDuration(l.key("BEST_HOST_AFTER_RETURN"), bh.AfterReturnToLobby)
	bh.AfterMigration = ParseDuration(l.key("BEST_HOST_AFTER_MIGRATION"), bh.AfterMigration)

	cfg.Dedicated.Provisioned = ParseBool(l.key("DEDICATED_PROVISIONED"), cfg.Dedicated.Provisioned)
	cfg.Dedicated.Address = ParseString(l.key("DEDICATED_ADDRESS"), cfg.Dedicated.Address)

	cfg.Debug.RejoinAfterLeave = ParseBool(l.key("DEBUG_REJOIN_AFTER_LEAVE"), cfg.Debug.RejoinAfterLeave)
	cfg.Debug.ForceBestHost = ParseBool(l.key("DEBUG_FORCE_BEST_HOST"), cfg.Debug.ForceBestHost)

	cfg.Store.Backend = ParseString(l.key("STORE_BACKEND"), cfg.Store.Backend)
	cfg.Store.Path = ParseString(l.key("STORE_PATH"), cfg.Store.Path)

	d := &cfg.Directory
	d.Enabled = ParseBool(l.key("DIRECTORY_ENABLED"), d.Enabled)
	d.Addr = ParseString(l.key("DIRECTORY_ADDR"), d.Addr)
	d.Password = ParseString(l.key("DIRECTORY_PASSWORD"), d.Password)
	d.DB = ParseInt(l.key("DIRECTORY_DB"), d.DB)
	d.KeyPrefix = ParseString(l.key("DIRECTORY_KEY_PREFIX"), d.KeyPrefix)
	d.TTL = ParseDuration(l.key("DIRECTORY_TTL"), d.TTL)

	tc := &cfg.Telemetry
	tc.Enabled = ParseBool(l.key("TELEMETRY_ENABLED"), tc.Enabled)
	tc.Exporter = ParseString(l.key("TELEMETRY_EXPORTER"), tc.Exporter)
	tc.Endpoint = ParseString(l.key("TELEMETRY_ENDPOINT"), tc.Endpoint)
	tc.Environment = ParseString(l.key("TELEMETRY_ENVIRONMENT"), tc.Environment)
	tc.SamplingRate = ParseFloat(l.key("TELEMETRY_SAMPLING_RATE"), tc.SamplingRate)
}

// CountdownSeconds converts a duration to the whole seconds carried on the wire.
func CountdownSeconds(d time.Duration) uint8 {
	s := int(d / time.Second)
	switch {
	case s < 0:
		return 0
	case s > 255:
		return 255
	}
	return uint8(s)
}
