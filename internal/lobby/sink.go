// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
	"github.com/ManuGH/lobbyd/internal/lobby/taskqueue"
	"github.com/ManuGH/lobbyd/internal/metrics"
)

// message is one inbox entry, applied on the lobby goroutine.
type message interface {
	apply(l *Lobby)
}

type completionMsg struct {
	kind taskqueue.Kind
	c    ports.Completion
}

func (m completionMsg) apply(l *Lobby) { l.onCompletion(m.kind, m.c) }

type funcMsg struct {
	fn   func(*Lobby)
	done chan struct{}
}

func (m funcMsg) apply(l *Lobby) {
	defer close(m.done)
	m.fn(l)
}

type rosterOp uint8

const (
	rosterJoined rosterOp = iota
	rosterLeft
	rosterUpdated
)

type rosterMsg struct {
	op   rosterOp
	h    model.SessionHandle
	info model.MemberInfo
}

func (m rosterMsg) apply(l *Lobby) {
	if !l.accepts(m.h) {
		return
	}
	switch m.op {
	case rosterJoined:
		l.onUserJoined(m.info)
	case rosterLeft:
		l.onUserLeft(m.info.Conn)
	case rosterUpdated:
		l.onUserUpdated(m.info)
	}
}

type packetMsg struct {
	h    model.SessionHandle
	from model.ConnectionID
	b    []byte
}

func (m packetMsg) apply(l *Lobby) {
	if !l.accepts(m.h) {
		return
	}
	l.dispatch(m.from, m.b)
}

type migrationPhase string

const (
	phaseInitiate  migrationPhase = "initiate"
	phaseDemote    migrationPhase = "demote"
	phasePromote   migrationPhase = "promote"
	phaseFinalise  migrationPhase = "finalise"
	phaseTerminate migrationPhase = "terminate"
	phaseReset     migrationPhase = "reset"
)

type migrationMsg struct {
	phase     migrationPhase
	h         model.SessionHandle
	decision  ports.MigrationDecision
	isNewHost bool
}

func (m migrationMsg) apply(l *Lobby) { l.onMigration(m) }

// accepts filters events that belong to a previous session.
func (l *Lobby) accepts(h model.SessionHandle) bool {
	if l.requested == model.StateNone {
		return false
	}
	return !l.handle.Valid() || !h.Valid() || h == l.handle
}

// sink adapts service events onto the inbox.
type sink struct{ l *Lobby }

var _ ports.EventSink = sink{}

func (s sink) OnUserJoined(h model.SessionHandle, m model.MemberInfo) {
	s.l.post(rosterMsg{op: rosterJoined, h: h, info: m})
}

func (s sink) OnUserLeft(h model.SessionHandle, conn model.ConnectionID) {
	s.l.post(rosterMsg{op: rosterLeft, h: h, info: model.MemberInfo{Conn: conn}})
}

func (s sink) OnUserUpdated(h model.SessionHandle, m model.MemberInfo) {
	s.l.post(rosterMsg{op: rosterUpdated, h: h, info: m})
}

func (s sink) OnPacket(h model.SessionHandle, from model.ConnectionID, b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	s.l.post(packetMsg{h: h, from: from, b: cp})
}

// OnMigrationInitiate answers from the published state because the service
// needs the decision before the next tick.
func (s sink) OnMigrationInitiate(h model.SessionHandle, carryNetObjects bool) ports.MigrationDecision {
	d := ports.MigrationContinue
	if carryNetObjects {
		if st := s.l.published.Load(); st == nil || st.State != model.StateGame {
			d = ports.MigrationTerminate
		}
	}
	metrics.RecordMigrationPhase(string(phaseInitiate))
	s.l.post(migrationMsg{phase: phaseInitiate, h: h, decision: d})
	return d
}

func (s sink) OnDemoteToClient(h model.SessionHandle) {
	s.l.post(migrationMsg{phase: phaseDemote, h: h})
}

func (s sink) OnPromoteToServer(h model.SessionHandle) {
	s.l.post(migrationMsg{phase: phasePromote, h: h})
}

func (s sink) OnMigrationFinalise(h model.SessionHandle, isNewHost bool) {
	s.l.post(migrationMsg{phase: phaseFinalise, h: h, isNewHost: isNewHost})
}

func (s sink) OnMigrationTerminate(h model.SessionHandle) {
	s.l.post(migrationMsg{phase: phaseTerminate, h: h})
}

func (s sink) OnMigrationReset(h model.SessionHandle) {
	s.l.post(migrationMsg{phase: phaseReset, h: h})
}
