// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ports declares the collaborators the lobby consumes.
package ports

import (
	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// Completion is the result of one asynchronous service call.
type Completion struct {
	Task model.TaskID
	Err  error

	// Create / Join / Migrate
	Handle  model.SessionHandle
	Session model.SessionID
	Host    bool
	// Matchmaking reports whether the session was formed by matchmaking
	// rather than by invite or direct join.
	Matchmaking bool

	// Query
	Members    []model.MemberInfo
	Attributes model.Attributes

	// EnsureBestHost: true when the service moved hosting elsewhere.
	HostChanged bool

	// DedicatedSetup
	Address string
}

// Callback receives a completion. Implementations may invoke it from any
// goroutine; the lobby marshals it onto its own loop.
type Callback func(Completion)

// CreateParams describes a new session.
type CreateParams struct {
	PublicSlots  int
	PrivateSlots int
	Ranked       bool
	Matchmaking  bool
	Attributes   model.Attributes
}

// JoinParams describes a join attempt.
type JoinParams struct {
	Target   model.SessionID
	Password string
}

// MatchMaking is the external session service. Every asynchronous call
// returns a correlation id and later invokes done exactly once, unless the
// call was cancelled.
type MatchMaking interface {
	Create(p CreateParams, done Callback) (model.TaskID, error)
	Join(p JoinParams, done Callback) (model.TaskID, error)
	Migrate(h model.SessionHandle, done Callback) (model.TaskID, error)
	Update(h model.SessionHandle, attrs model.Attributes, done Callback) (model.TaskID, error)
	Delete(h model.SessionHandle, done Callback) (model.TaskID, error)
	Start(h model.SessionHandle, done Callback) (model.TaskID, error)
	End(h model.SessionHandle, done Callback) (model.TaskID, error)
	Query(h model.SessionHandle, done Callback) (model.TaskID, error)
	EnsureBestHost(h model.SessionHandle, done Callback) (model.TaskID, error)
	SetLocalUserData(h model.SessionHandle, data []byte, done Callback) (model.TaskID, error)
	TerminateHostHinting(h model.SessionHandle, done Callback) (model.TaskID, error)

	CancelTask(id model.TaskID)
	SendTo(h model.SessionHandle, to model.ConnectionID, b []byte) error
	SessionID(h model.SessionHandle) model.SessionID
	LocalConnection(h model.SessionHandle) model.ConnectionID

	// Attach registers the sink that receives roster, packet and migration events.
	Attach(sink EventSink)
}

// MigrationDecision is the synchronous answer to a migration initiation.
type MigrationDecision uint8

const (
	MigrationContinue MigrationDecision = iota
	MigrationTerminate
)

func (d MigrationDecision) String() string {
	if d == MigrationTerminate {
		return "terminate"
	}
	return "continue"
}

// EventSink receives service events. Calls may arrive on any goroutine.
type EventSink interface {
	OnUserJoined(h model.SessionHandle, m model.MemberInfo)
	OnUserLeft(h model.SessionHandle, conn model.ConnectionID)
	OnUserUpdated(h model.SessionHandle, m model.MemberInfo)
	OnPacket(h model.SessionHandle, from model.ConnectionID, b []byte)

	OnMigrationInitiate(h model.SessionHandle, carryNetObjects bool) MigrationDecision
	OnDemoteToClient(h model.SessionHandle)
	OnPromoteToServer(h model.SessionHandle)
	// OnMigrationFinalise carries the handle valid after migration.
	OnMigrationFinalise(h model.SessionHandle, isNewHost bool)
	OnMigrationTerminate(h model.SessionHandle)
	OnMigrationReset(h model.SessionHandle)
}
