// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the full lobbyd configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Lobby     LobbyConfig     `yaml:"lobby"`
	Voting    VotingConfig    `yaml:"voting"`
	BestHost  BestHostConfig  `yaml:"bestHost"`
	Dedicated DedicatedConfig `yaml:"dedicated"`
	Debug     DebugConfig     `yaml:"debug"`
	Store     StoreConfig     `yaml:"store"`
	Directory DirectoryConfig `yaml:"directory"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AdminConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int `yaml:"rateLimit"`
}

// RotationEntry is one map/mode pair of the rotation.
type RotationEntry struct {
	Map  string `yaml:"map"`
	Mode string `yaml:"mode"`
}

type LobbyConfig struct {
	Role         string `yaml:"role"` // interactive|dedicated
	PublicSlots  int    `yaml:"publicSlots"`
	PrivateSlots int    `yaml:"privateSlots"`
	MinPlayers   int    `yaml:"minPlayers"`
	Ranked       bool   `yaml:"ranked"`
	Matchmaking  bool   `yaml:"matchmaking"`
	MinRank      uint8  `yaml:"minRank"`
	MaxRank      uint8  `yaml:"maxRank"`

	Language        string `yaml:"language"`
	GameVersion     uint32 `yaml:"gameVersion"`
	Playlist        uint32 `yaml:"playlist"`
	Variant         uint32 `yaml:"variant"`
	RequiredContent uint32 `yaml:"requiredContent"`

	InitialCountdown    time.Duration `yaml:"initialCountdown"`
	SubsequentCountdown time.Duration `yaml:"subsequentCountdown"`
	BalanceWindow       time.Duration `yaml:"balanceWindow"`
	ReservationTimeout  time.Duration `yaml:"reservationTimeout"`
	PlaceholderTimeout  time.Duration `yaml:"placeholderTimeout"`
	LeaveTimeout        time.Duration `yaml:"leaveTimeout"`
	MoveTimeout         time.Duration `yaml:"moveTimeout"`
	TickInterval        time.Duration `yaml:"tickInterval"`
	PacketRate          float64       `yaml:"packetRate"`
	PacketBurst         int           `yaml:"packetBurst"`

	RotationKey string          `yaml:"rotationKey"`
	Rotation    []RotationEntry `yaml:"rotation"`
}

type VotingConfig struct {
	Enabled   bool          `yaml:"enabled"`
	CloseLead time.Duration `yaml:"closeLead"`
}

type BestHostConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Interval           time.Duration `yaml:"interval"`
	AfterJoin          time.Duration `yaml:"afterJoin"`
	AfterStart         time.Duration `yaml:"afterStart"`
	AfterReturnToLobby time.Duration `yaml:"afterReturnToLobby"`
	AfterMigration     time.Duration `yaml:"afterMigration"`
}

type DedicatedConfig struct {
	Provisioned bool   `yaml:"provisioned"`
	Address     string `yaml:"address"`
}

type DebugConfig struct {
	RejoinAfterLeave bool `yaml:"rejoinAfterLeave"`
	ForceBestHost    bool `yaml:"forceBestHost"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // memory|sqlite|badger
	Path    string `yaml:"path"`
}

type DirectoryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"keyPrefix"`
	TTL       time.Duration `yaml:"ttl"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Log:   LogConfig{Level: "info"},
		Admin: AdminConfig{ListenAddr: "127.0.0.1:8085", RateLimit: 120},
		Lobby: LobbyConfig{
			Role:                "dedicated",
			PublicSlots:         8,
			PrivateSlots:        0,
			MinPlayers:          2,
			Matchmaking:         true,
			MaxRank:             255,
			Language:            "en",
			GameVersion:         1,
			InitialCountdown:    30 * time.Second,
			SubsequentCountdown: 20 * time.Second,
			BalanceWindow:       5 * time.Second,
			ReservationTimeout:  10 * time.Second,
			PlaceholderTimeout:  15 * time.Second,
			LeaveTimeout:        10 * time.Second,
			MoveTimeout:         15 * time.Second,
			TickInterval:        100 * time.Millisecond,
			PacketRate:          20,
			PacketBurst:         40,
			RotationKey:         "default",
			Rotation: []RotationEntry{
				{Map: "skyline", Mode: "assault"},
				{Map: "harbor", Mode: "ctf"},
				{Map: "canyon", Mode: "tdm"},
				{Map: "foundry", Mode: "assault"},
			},
		},
		Voting: VotingConfig{Enabled: true, CloseLead: 5 * time.Second},
		BestHost: BestHostConfig{
			Enabled:            true,
			Interval:           60 * time.Second,
			AfterJoin:          10 * time.Second,
			AfterStart:         30 * time.Second,
			AfterReturnToLobby: 15 * time.Second,
			AfterMigration:     20 * time.Second,
		},
		Store:     StoreConfig{Backend: "memory"},
		Directory: DirectoryConfig{Addr: "127.0.0.1:6379", KeyPrefix: "lobbyd", TTL: 30 * time.Second},
		Telemetry: TelemetryConfig{Exporter: "grpc", Endpoint: "localhost:4317", Environment: "production", SamplingRate: 1.0},
	}
}
