// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lobbyd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
lobby:
  publicSlots: 12
  initialCountdown: 45s
  rotation:
    - {map: a, mode: tdm}
    - {map: b, mode: ctf}
voting:
  closeLead: 3s
`)
	cfg, err := NewLoader(path, "v1.2.3").Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Lobby.PublicSlots)
	assert.Equal(t, 45*time.Second, cfg.Lobby.InitialCountdown)
	assert.Equal(t, 3*time.Second, cfg.Voting.CloseLead)
	assert.Len(t, cfg.Lobby.Rotation, 2)
	assert.Equal(t, "v1.2.3", cfg.Version)
	// Untouched defaults survive.
	assert.Equal(t, 2, cfg.Lobby.MinPlayers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "lobby:\n  publicSlots: 12\n")
	t.Setenv("LOBBYD_LOBBY_PUBLIC_SLOTS", "6")
	t.Setenv("LOBBYD_VOTING_ENABLED", "no")
	t.Setenv("LOBBYD_LOBBY_LEAVE_TIMEOUT", "garbage")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Lobby.PublicSlots)
	assert.False(t, cfg.Voting.Enabled)
	assert.Equal(t, Defaults().Lobby.LeaveTimeout, cfg.Lobby.LeaveTimeout)
	assert.Contains(t, l.ConsumedEnvKeys, "LOBBYD_LOBBY_PUBLIC_SLOTS")
}

func TestLoad_StrictRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "lobby:\n  publicSlotz: 12\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), err)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n---\nlog:\n  level: debug\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lobbyd.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"bad role", func(c *AppConfig) { c.Lobby.Role = "spectator" }},
		{"zero capacity", func(c *AppConfig) { c.Lobby.PublicSlots = 0 }},
		{"min players above capacity", func(c *AppConfig) { c.Lobby.MinPlayers = 99 }},
		{"bad language", func(c *AppConfig) { c.Lobby.Language = "!!" }},
		{"rank range", func(c *AppConfig) { c.Lobby.MinRank, c.Lobby.MaxRank = 10, 5 }},
		{"balance window too long", func(c *AppConfig) { c.Lobby.BalanceWindow = c.Lobby.InitialCountdown }},
		{"voting with one map", func(c *AppConfig) { c.Lobby.Rotation = c.Lobby.Rotation[:1] }},
		{"sqlite without path", func(c *AppConfig) { c.Store.Backend = "sqlite" }},
		{"unknown store", func(c *AppConfig) { c.Store.Backend = "etcd" }},
		{"directory ttl", func(c *AppConfig) { c.Directory.Enabled = true; c.Directory.TTL = 0 }},
		{"telemetry exporter", func(c *AppConfig) { c.Telemetry.Enabled = true; c.Telemetry.Exporter = "zipkin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLanguageTag(t *testing.T) {
	tag, err := LanguageTag("de-AT")
	require.NoError(t, err)
	assert.Equal(t, "de", tag.String())
}

func TestCountdownSeconds(t *testing.T) {
	assert.Equal(t, uint8(30), CountdownSeconds(30*time.Second+400*time.Millisecond))
	assert.Equal(t, uint8(0), CountdownSeconds(-time.Second))
	assert.Equal(t, uint8(255), CountdownSeconds(time.Hour))
}

func TestHolder_ReloadNotifiesAndKeepsOldOnFailure(t *testing.T) {
	path := writeConfig(t, "lobby:\n  publicSlots: 8\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("lobby:\n  publicSlots: 10\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, 10, h.Get().Lobby.PublicSlots)
	assert.Equal(t, 10, (<-ch).Lobby.PublicSlots)

	require.NoError(t, os.WriteFile(path, []byte("lobby:\n  role: bogus\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, 10, h.Get().Lobby.PublicSlots)
}

func TestHolder_WatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "lobby:\n  publicSlots: 8\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	h.debounce = 10 * time.Millisecond
	ch := make(chan AppConfig, 4)
	h.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, h.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte("lobby:\n  publicSlots: 9\n"), 0o600))
	select {
	case cfg := <-ch:
		assert.Equal(t, 9, cfg.Lobby.PublicSlots)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after file write")
	}
}

func TestHolder_NoPathNoWatcher(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", ""))
	require.NoError(t, h.StartWatcher(context.Background()))
	assert.Nil(t, h.watcher)
}
