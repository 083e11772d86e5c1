// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// State is the externally visible lifecycle of one lobby instance.
type State string

const (
	StateNone         State = "NONE"
	StateFindGame     State = "FIND_GAME"
	StateInitializing State = "INITIALIZING"
	StateLobby        State = "LOBBY"
	StateJoinSession  State = "JOIN_SESSION"
	StatePreGame      State = "PRE_GAME"
	StateGame         State = "GAME"
	StateGameEnded    State = "GAME_ENDED"
	StatePostGame     State = "POST_GAME"
	StateEndSession   State = "END_SESSION"
	StateLeaving      State = "LEAVING"
)

// AllStates lists every state in declaration order.
var AllStates = []State{
	StateNone,
	StateFindGame,
	StateInitializing,
	StateLobby,
	StateJoinSession,
	StatePreGame,
	StateGame,
	StateGameEnded,
	StatePostGame,
	StateEndSession,
	StateLeaving,
}

// InMatch reports whether a match is loading or running.
func (s State) InMatch() bool {
	switch s {
	case StatePreGame, StateGame:
		return true
	}
	return false
}

// ActiveStatus is published in the discovery attributes so searchers can
// tell idle lobbies from running matches.
type ActiveStatus uint32

const (
	ActiveStatusNone ActiveStatus = iota
	ActiveStatusLobby
	ActiveStatusStartingGame
	ActiveStatusGame
	ActiveStatusEndGame
)

func (a ActiveStatus) String() string {
	switch a {
	case ActiveStatusLobby:
		return "lobby"
	case ActiveStatusStartingGame:
		return "starting_game"
	case ActiveStatusGame:
		return "game"
	case ActiveStatusEndGame:
		return "end_game"
	default:
		return "none"
	}
}

// ActiveStatusFor maps a lifecycle state onto the advertised status.
func ActiveStatusFor(s State) ActiveStatus {
	switch s {
	case StateLobby, StateInitializing:
		return ActiveStatusLobby
	case StateJoinSession, StatePreGame:
		return ActiveStatusStartingGame
	case StateGame:
		return ActiveStatusGame
	case StateGameEnded, StatePostGame, StateEndSession:
		return ActiveStatusEndGame
	default:
		return ActiveStatusNone
	}
}

// CountdownStage gates the automatic match start.
type CountdownStage uint8

const (
	StageWaitingForPlayers CountdownStage = iota
	StageWaitingForBalancedTeams
	StageStarted
)

func (s CountdownStage) String() string {
	switch s {
	case StageWaitingForPlayers:
		return "waiting_for_players"
	case StageWaitingForBalancedTeams:
		return "waiting_for_balanced_teams"
	case StageStarted:
		return "started"
	default:
		return "unknown"
	}
}

// Role is the process role the lobby runs in.
type Role string

const (
	RoleInteractive Role = "interactive"
	RoleDedicated   Role = "dedicated"
)
