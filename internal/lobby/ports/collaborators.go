// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/reservation"
	"github.com/ManuGH/lobbyd/internal/lobby/vote"
)

// ContentChecker tests whether the local install satisfies a required-content bitmask.
type ContentChecker interface {
	HasContent(required uint32) bool
}

// TeamBalancer is notified of roster changes and answers team queries.
type TeamBalancer interface {
	OnPlayerAdded(conn model.ConnectionID, data model.MemberData)
	OnPlayerRemoved(conn model.ConnectionID)
	OnPlayerUpdated(conn model.ConnectionID, data model.MemberData)
	TeamOf(conn model.ConnectionID) uint8
	Balanced() bool
}

// Warning names presented to the user.
const (
	WarnJoinFailed      = "join_failed"
	WarnSessionFull     = "session_full"
	WarnSessionNotFound = "session_not_found"
	WarnSessionClosed   = "session_closed"
	WarnRankRestricted  = "rank_restricted"
	WarnContentMissing  = "content_missing"
	WarnSignIn          = "sign_in_required"
	WarnTaskFailed      = "task_failed"
)

// Warnings is the user-facing error presenter.
type Warnings interface {
	Warn(name, param string)
	PromptPassword(target model.SessionID)
}

// RankPolicy gates match start on member ranks.
type RankPolicy interface {
	Allowed(rank uint8) bool
}

// Provisioner requests and releases a separately provisioned game server.
type Provisioner interface {
	Request(id model.SessionID, done Callback) (model.TaskID, error)
	Release(id model.SessionID)
}

// GameHost is the level-loading side of the game.
type GameHost interface {
	ApplySafeSettings()
	ArmLoadingHint(mapName string)
	StartLevel(mapName, mode string) error
	Connect(address string) error
}

// Rotation is the map/mode sequence used by voting.
type Rotation = vote.Rotation

// Squad is the party layer above the lobby.
type Squad interface {
	OnReservationResult(r reservation.Result, secondary bool)
	IsMember() bool
	Leave()
}

// Publisher receives lobby events for out-of-loop consumers. Implementations
// must not block.
type Publisher interface {
	TryPublish(topic string, msg any) bool
}
