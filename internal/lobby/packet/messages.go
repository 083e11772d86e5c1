// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package packet

import (
	"fmt"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// Type is the numeric tag following the header.
type Type uint8

const (
	TypeCountdownSync Type = iota + 1
	TypeReservationRequest
	TypeReservationResult
	TypeReservationIdentify
	TypeGameHasStarted
	TypeJoinGame
	TypeMoveSession
	TypeVoteCandidates
	TypeGameEnded
	TypeRequestCountdownSync
	TypeDedicatedServerInfo
)

func (t Type) String() string {
	switch t {
	case TypeCountdownSync:
		return "countdown_sync"
	case TypeReservationRequest:
		return "reservation_request"
	case TypeReservationResult:
		return "reservation_result"
	case TypeReservationIdentify:
		return "reservation_identify"
	case TypeGameHasStarted:
		return "game_has_started"
	case TypeJoinGame:
		return "join_game"
	case TypeMoveSession:
		return "move_session"
	case TypeVoteCandidates:
		return "vote_candidates"
	case TypeGameEnded:
		return "game_ended"
	case TypeRequestCountdownSync:
		return "request_countdown_sync"
	case TypeDedicatedServerInfo:
		return "dedicated_server_info"
	default:
		return fmt.Sprintf("type_%d", uint8(t))
	}
}

// Role names the side that is allowed to handle a message.
type Role uint8

const (
	RoleHost Role = iota + 1
	RoleMember
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "member"
}

// HandledBy returns the role that must receive messages of type t.
func HandledBy(t Type) Role {
	switch t {
	case TypeReservationRequest, TypeReservationIdentify, TypeRequestCountdownSync:
		return RoleHost
	default:
		return RoleMember
	}
}

// Message is implemented by every wire message.
type Message interface {
	Type() Type
	encode(w *writer)
	decode(r *reader)
}

// CountdownSync carries the host's countdown and voting state.
type CountdownSync struct {
	Stage            model.CountdownStage
	SecondsToBalance uint8
	Initial          bool
	TimeRemaining    uint8
	VotingEnabled    bool
	VotingClosed     bool
	LeftWins         bool
}

func (*CountdownSync) Type() Type { return TypeCountdownSync }

func (m *CountdownSync) encode(w *writer) {
	w.u8(uint8(m.Stage))
	w.u8(m.SecondsToBalance)
	w.boolean(m.Initial)
	w.u8(m.TimeRemaining)
	w.boolean(m.VotingEnabled)
	w.boolean(m.VotingClosed)
	w.boolean(m.LeftWins)
}

func (m *CountdownSync) decode(r *reader) {
	stage := r.u8()
	if stage > uint8(model.StageStarted) && r.err == nil {
		r.err = fmt.Errorf("%w: stage %d", ErrBadValue, stage)
	}
	m.Stage = model.CountdownStage(stage)
	m.SecondsToBalance = r.u8()
	m.Initial = r.boolean()
	m.TimeRemaining = r.u8()
	m.VotingEnabled = r.boolean()
	m.VotingClosed = r.boolean()
	m.LeftWins = r.boolean()
}

// ReservationRequest asks the host to hold slots for a party.
type ReservationRequest struct {
	Members []model.ConnectionID
}

func (*ReservationRequest) Type() Type { return TypeReservationRequest }

func (m *ReservationRequest) encode(w *writer) {
	if len(m.Members) > MaxReservationMembers {
		w.fail(fmt.Errorf("%w: %d members", ErrTooLong, len(m.Members)))
		return
	}
	w.u8(uint8(len(m.Members)))
	for _, c := range m.Members {
		w.conn(c)
	}
}

func (m *ReservationRequest) decode(r *reader) {
	n := int(r.u8())
	if n == 0 {
		m.Members = nil
		return
	}
	m.Members = make([]model.ConnectionID, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		m.Members = append(m.Members, r.conn())
	}
}

// ReservationOutcome mirrors reservation.Result on the wire.
type ReservationOutcome uint8

const (
	ReservationSuccess ReservationOutcome = iota
	ReservationFail
	ReservationNoneNeeded
)

// ReservationResult is the host's reply to a ReservationRequest.
type ReservationResult struct {
	Result    ReservationOutcome
	Secondary bool
}

func (*ReservationResult) Type() Type { return TypeReservationResult }

func (m *ReservationResult) encode(w *writer) {
	w.u8(uint8(m.Result))
	w.boolean(m.Secondary)
}

func (m *ReservationResult) decode(r *reader) {
	res := r.u8()
	if res > uint8(ReservationNoneNeeded) && r.err == nil {
		r.err = fmt.Errorf("%w: reservation result %d", ErrBadValue, res)
	}
	m.Result = ReservationOutcome(res)
	m.Secondary = r.boolean()
}

// ReservationIdentify is sent by a joining connection that holds a reservation.
type ReservationIdentify struct {
	Conn model.ConnectionID
}

func (*ReservationIdentify) Type() Type { return TypeReservationIdentify }

func (m *ReservationIdentify) encode(w *writer) { w.conn(m.Conn) }

func (m *ReservationIdentify) decode(r *reader) { m.Conn = r.conn() }

type GameHasStarted struct{}

func (*GameHasStarted) Type() Type     { return TypeGameHasStarted }
func (*GameHasStarted) encode(*writer) {}
func (*GameHasStarted) decode(*reader) {}

// JoinGame tells members which level to load and where to connect.
type JoinGame struct {
	Map    string
	Mode   string
	Server string
}

func (*JoinGame) Type() Type { return TypeJoinGame }

func (m *JoinGame) encode(w *writer) {
	w.str(m.Map)
	w.str(m.Mode)
	w.str(m.Server)
}

func (m *JoinGame) decode(r *reader) {
	m.Map = r.str()
	m.Mode = r.str()
	m.Server = r.str()
}

// MoveSession instructs members to follow the host into another session.
type MoveSession struct {
	Target model.SessionID
}

func (*MoveSession) Type() Type { return TypeMoveSession }

func (m *MoveSession) encode(w *writer) { w.str(string(m.Target)) }

func (m *MoveSession) decode(r *reader) { m.Target = model.SessionID(r.str()) }

// VoteCandidates publishes the current election pair and rotation cursor.
type VoteCandidates struct {
	Cursor    uint16
	LeftMap   string
	LeftMode  string
	RightMap  string
	RightMode string
}

func (*VoteCandidates) Type() Type { return TypeVoteCandidates }

func (m *VoteCandidates) encode(w *writer) {
	w.u16(m.Cursor)
	w.str(m.LeftMap)
	w.str(m.LeftMode)
	w.str(m.RightMap)
	w.str(m.RightMode)
}

func (m *VoteCandidates) decode(r *reader) {
	m.Cursor = r.u16()
	m.LeftMap = r.str()
	m.LeftMode = r.str()
	m.RightMap = r.str()
	m.RightMode = r.str()
}

type GameEnded struct{}

func (*GameEnded) Type() Type     { return TypeGameEnded }
func (*GameEnded) encode(*writer) {}
func (*GameEnded) decode(*reader) {}

type RequestCountdownSync struct{}

func (*RequestCountdownSync) Type() Type     { return TypeRequestCountdownSync }
func (*RequestCountdownSync) encode(*writer) {}
func (*RequestCountdownSync) decode(*reader) {}

// DedicatedServerInfo points members at a provisioned server.
type DedicatedServerInfo struct {
	Address string
}

func (*DedicatedServerInfo) Type() Type { return TypeDedicatedServerInfo }

func (m *DedicatedServerInfo) encode(w *writer) { w.str(m.Address) }

func (m *DedicatedServerInfo) decode(r *reader) { m.Address = r.str() }

func newMessage(t Type) (Message, error) {
	switch t {
	case TypeCountdownSync:
		return &CountdownSync{}, nil
	case TypeReservationRequest:
		return &ReservationRequest{}, nil
	case TypeReservationResult:
		return &ReservationResult{}, nil
	case TypeReservationIdentify:
		return &ReservationIdentify{}, nil
	case TypeGameHasStarted:
		return &GameHasStarted{}, nil
	case TypeJoinGame:
		return &JoinGame{}, nil
	case TypeMoveSession:
		return &MoveSession{}, nil
	case TypeVoteCandidates:
		return &VoteCandidates{}, nil
	case TypeGameEnded:
		return &GameEnded{}, nil
	case TypeRequestCountdownSync:
		return &RequestCountdownSync{}, nil
	case TypeDedicatedServerInfo:
		return &DedicatedServerInfo{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
}
