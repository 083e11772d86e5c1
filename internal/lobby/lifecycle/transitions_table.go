// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"fmt"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// Transition is a single allowed edge in the lobby state machine.
type Transition struct {
	From  model.State
	To    model.State
	Event EventKind
}

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

const (
	ForbiddenNoSession      = "no_session"
	ForbiddenOutOfOrder     = "out_of_order"
	ForbiddenAlreadyInState = "already_in_state"
	ForbiddenSessionActive  = "session_active"
	ForbiddenRequiresLobby  = "requires_lobby"
	ForbiddenRequiresMatch  = "requires_match"
	ForbiddenRequiresLeave  = "requires_leaving"
)

var transitionsTable = []Transition{
	// Search / create / join
	{From: model.StateNone, To: model.StateFindGame, Event: EvFindGame},
	{From: model.StateLeaving, To: model.StateFindGame, Event: EvFindGame},
	{From: model.StateInitializing, To: model.StateFindGame, Event: EvFindGame},
	{From: model.StateFindGame, To: model.StateInitializing, Event: EvSessionReady},
	{From: model.StateInitializing, To: model.StateLobby, Event: EvInitialized},

	// Match start
	{From: model.StateLobby, To: model.StateJoinSession, Event: EvStartMatch},
	{From: model.StateJoinSession, To: model.StatePreGame, Event: EvSessionStarted},
	{From: model.StateJoinSession, To: model.StateLobby, Event: EvStartAborted},
	{From: model.StatePreGame, To: model.StateLobby, Event: EvStartAborted},
	{From: model.StatePreGame, To: model.StateGame, Event: EvEnterGame},

	// Match end
	{From: model.StateGame, To: model.StateEndSession, Event: EvEndMatch},
	{From: model.StateGame, To: model.StateGameEnded, Event: EvGameEnded},
	{From: model.StateEndSession, To: model.StateGameEnded, Event: EvGameEnded},
	{From: model.StateGameEnded, To: model.StatePostGame, Event: EvPostGame},
	{From: model.StatePostGame, To: model.StateLobby, Event: EvReturnToLobby},

	// Teardown
	{From: model.StateFindGame, To: model.StateLeaving, Event: EvLeave},
	{From: model.StateInitializing, To: model.StateLeaving, Event: EvLeave},
	{From: model.StateLobby, To: model.StateLeaving, Event: EvLeave},
	{From: model.StateJoinSession, To: model.StateLeaving, Event: EvLeave},
	{From: model.StatePreGame, To: model.StateLeaving, Event: EvLeave},
	{From: model.StateGame, To: model.StateLeaving, Event: EvLeave},
	{From: model.StateGameEnded, To: model.StateLeaving, Event: EvLeave},
	{From: model.StatePostGame, To: model.StateLeaving, Event: EvLeave},
	{From: model.StateEndSession, To: model.StateLeaving, Event: EvLeave},
	{From: model.StateLeaving, To: model.StateNone, Event: EvLeft},
	{From: model.StateLeaving, To: model.StateNone, Event: EvLeaveTimeout},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from model.State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// DecisionFor returns an explicit decision for every State×Event combination.
// The bool is false only for states or events outside the known sets.
func DecisionFor(from model.State, ev EventKind) (Decision, bool) {
	if !knownState(from) || !knownEvent(ev) {
		return Decision{}, false
	}
	if _, ok := TransitionFor(from, ev); ok {
		return Decision{Allowed: true}, true
	}
	return Decision{Reason: forbiddenReason(from, ev)}, true
}

// Next resolves the target state or returns a descriptive error.
func Next(from model.State, ev EventKind) (model.State, error) {
	tr, ok := TransitionFor(from, ev)
	if !ok {
		d, _ := DecisionFor(from, ev)
		return from, fmt.Errorf("%w: %s + %s (%s)", model.ErrIllegalState, from, ev, d.Reason)
	}
	return tr.To, nil
}

// ForbiddenTransitionReason documents why a transition is disallowed.
func ForbiddenTransitionReason(from model.State, ev EventKind) string {
	d, ok := DecisionFor(from, ev)
	if !ok || d.Allowed {
		return ""
	}
	return d.Reason
}

func forbiddenReason(from model.State, ev EventKind) string {
	if target, ok := targetOf(ev); ok && target == from {
		return ForbiddenAlreadyInState
	}
	switch ev {
	case EvFindGame:
		return ForbiddenSessionActive
	case EvLeave:
		return ForbiddenNoSession
	case EvLeft, EvLeaveTimeout:
		return ForbiddenRequiresLeave
	case EvStartMatch:
		return ForbiddenRequiresLobby
	case EvEndMatch, EvGameEnded:
		return ForbiddenRequiresMatch
	}
	if from == model.StateNone {
		return ForbiddenNoSession
	}
	return ForbiddenOutOfOrder
}

func targetOf(ev EventKind) (model.State, bool) {
	var target model.State
	found := false
	for _, tr := range transitionsTable {
		if tr.Event != ev {
			continue
		}
		if found && tr.To != target {
			return "", false
		}
		target, found = tr.To, true
	}
	return target, found
}

func knownState(s model.State) bool {
	for _, st := range model.AllStates {
		if st == s {
			return true
		}
	}
	return false
}

func knownEvent(ev EventKind) bool {
	for _, e := range AllEvents {
		if e == ev {
			return true
		}
	}
	return false
}
