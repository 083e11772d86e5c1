// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package events defines the lobby notifications published on the bus.
package events

import (
	"time"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// Topics.
const (
	TopicState      = "lobby.state"
	TopicAttributes = "lobby.attributes"
	TopicMatch      = "lobby.match"
	TopicRotation   = "lobby.rotation"
	TopicSession    = "lobby.session"
)

// StateChanged is published after every executed transition.
type StateChanged struct {
	Session model.SessionID
	From    model.State
	To      model.State
	Host    bool
	At      time.Time
}

// AttributesChanged carries the discovery attribute table of a hosted session.
type AttributesChanged struct {
	Session    model.SessionID
	Attributes map[string]uint32
	Members    int
	Capacity   int
	At         time.Time
}

// MatchStarted is published when the host enters Game.
type MatchStarted struct {
	Session model.SessionID
	Map     string
	Mode    string
	Members int
	At      time.Time
}

// MatchEnded is published when a hosted match finishes.
type MatchEnded struct {
	Session model.SessionID
	Map     string
	Mode    string
	Members int
	Started time.Time
	Ended   time.Time
}

// CursorAdvanced is published when the rotation cursor moves.
type CursorAdvanced struct {
	Key    string
	Cursor int
	At     time.Time
}

// SessionClosed is published when the lobby returns to None.
type SessionClosed struct {
	Session model.SessionID
	Reason  string
	At      time.Time
}
