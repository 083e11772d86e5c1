// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"time"

	"github.com/ManuGH/lobbyd/internal/config"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/vote"
)

// Config is the lobby tuning. It is a plain value so tests can build it
// without the file loader.
type Config struct {
	Role         model.Role
	PublicSlots  int
	PrivateSlots int
	MinPlayers   int
	Ranked       bool
	Matchmaking  bool

	GameVersion     uint32
	Playlist        uint32
	Variant         uint32
	RequiredContent uint32
	Language        uint32

	InitialCountdown    time.Duration
	SubsequentCountdown time.Duration
	BalanceWindow       time.Duration
	ReservationTimeout  time.Duration
	PlaceholderTimeout  time.Duration
	LeaveTimeout        time.Duration
	MoveTimeout         time.Duration
	TickInterval        time.Duration
	PacketRate          float64
	PacketBurst         int

	RotationKey string

	Voting    VotingConfig
	BestHost  BestHostConfig
	Dedicated DedicatedConfig
	Debug     DebugConfig
}

type VotingConfig struct {
	Enabled   bool
	CloseLead time.Duration
}

type BestHostConfig struct {
	Enabled            bool
	Interval           time.Duration
	AfterJoin          time.Duration
	AfterStart         time.Duration
	AfterReturnToLobby time.Duration
	AfterMigration     time.Duration
}

type DedicatedConfig struct {
	Provisioned bool
}

type DebugConfig struct {
	RejoinAfterLeave bool
	ForceBestHost    bool
}

// Capacity is the total slot count.
func (c Config) Capacity() int { return c.PublicSlots + c.PrivateSlots }

// DefaultConfig mirrors config.Defaults.
func DefaultConfig() Config {
	return ConfigFrom(config.Defaults())
}

// ConfigFrom maps the validated application config onto lobby tuning.
func ConfigFrom(app config.AppConfig) Config {
	lb := app.Lobby
	var lang uint32
	if tag, err := config.LanguageTag(lb.Language); err == nil {
		lang = model.HashName(tag.String())
	}
	return Config{
		Role:                model.Role(lb.Role),
		PublicSlots:         lb.PublicSlots,
		PrivateSlots:        lb.PrivateSlots,
		MinPlayers:          lb.MinPlayers,
		Ranked:              lb.Ranked,
		Matchmaking:         lb.Matchmaking,
		GameVersion:         lb.GameVersion,
		Playlist:            lb.Playlist,
		Variant:             lb.Variant,
		RequiredContent:     lb.RequiredContent,
		Language:            lang,
		InitialCountdown:    lb.InitialCountdown,
		SubsequentCountdown: lb.SubsequentCountdown,
		BalanceWindow:       lb.BalanceWindow,
		ReservationTimeout:  lb.ReservationTimeout,
		PlaceholderTimeout:  lb.PlaceholderTimeout,
		LeaveTimeout:        lb.LeaveTimeout,
		MoveTimeout:         lb.MoveTimeout,
		TickInterval:        lb.TickInterval,
		PacketRate:          lb.PacketRate,
		PacketBurst:         lb.PacketBurst,
		RotationKey:         lb.RotationKey,
		Voting:              VotingConfig{Enabled: app.Voting.Enabled, CloseLead: app.Voting.CloseLead},
		BestHost: BestHostConfig{
			Enabled:            app.BestHost.Enabled,
			Interval:           app.BestHost.Interval,
			AfterJoin:          app.BestHost.AfterJoin,
			AfterStart:         app.BestHost.AfterStart,
			AfterReturnToLobby: app.BestHost.AfterReturnToLobby,
			AfterMigration:     app.BestHost.AfterMigration,
		},
		Dedicated: DedicatedConfig{Provisioned: app.Dedicated.Provisioned},
		Debug:     DebugConfig{RejoinAfterLeave: app.Debug.RejoinAfterLeave, ForceBestHost: app.Debug.ForceBestHost},
	}
}

// RankRange is a RankPolicy admitting ranks in [Min, Max].
type RankRange struct {
	Min uint8
	Max uint8
}

func (r RankRange) Allowed(rank uint8) bool { return rank >= r.Min && rank <= r.Max }

// RankFrom reads the rank restriction of the application config.
func RankFrom(app config.AppConfig) RankRange {
	return RankRange{Min: app.Lobby.MinRank, Max: app.Lobby.MaxRank}
}

// ConfigRotation is a fixed rotation read from the config file.
type ConfigRotation []vote.Candidate

// RotationFrom keeps the entries with both map and mode set, in order.
func RotationFrom(entries []config.RotationEntry) ConfigRotation {
	out := make(ConfigRotation, 0, len(entries))
	for _, e := range entries {
		if e.Map == "" || e.Mode == "" {
			continue
		}
		out = append(out, vote.Candidate{Map: e.Map, Mode: e.Mode})
	}
	return out
}

func (r ConfigRotation) Len() int                { return len(r) }
func (r ConfigRotation) At(i int) vote.Candidate { return r[i] }
