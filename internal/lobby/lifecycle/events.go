// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

// EventKind is a lifecycle input of the lobby state machine.
type EventKind string

const (
	EvFindGame       EventKind = "find_game"
	EvSessionReady   EventKind = "session_ready"
	EvInitialized    EventKind = "initialized"
	EvStartMatch     EventKind = "start_match"
	EvSessionStarted EventKind = "session_started"
	EvStartAborted   EventKind = "start_aborted"
	EvEnterGame      EventKind = "enter_game"
	EvEndMatch       EventKind = "end_match"
	EvGameEnded      EventKind = "game_ended"
	EvPostGame       EventKind = "post_game"
	EvReturnToLobby  EventKind = "return_to_lobby"
	EvLeave          EventKind = "leave"
	EvLeft           EventKind = "left"
	EvLeaveTimeout   EventKind = "leave_timeout"
)

// AllEvents lists every event kind.
var AllEvents = []EventKind{
	EvFindGame,
	EvSessionReady,
	EvInitialized,
	EvStartMatch,
	EvSessionStarted,
	EvStartAborted,
	EvEnterGame,
	EvEndMatch,
	EvGameEnded,
	EvPostGame,
	EvReturnToLobby,
	EvLeave,
	EvLeft,
	EvLeaveTimeout,
}
