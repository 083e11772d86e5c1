// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/lifecycle"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/reservation"
	"github.com/ManuGH/lobbyd/internal/lobby/taskqueue"
	"github.com/ManuGH/lobbyd/internal/lobby/vote"
	"github.com/ManuGH/lobbyd/internal/metrics"
)

type handler struct {
	role packet.Role
	fn   func(l *Lobby, from model.ConnectionID, m packet.Message)
}

// handlers is the receive table. Control-flow messages act immediately
// inside dispatch.
var handlers = map[packet.Type]handler{
	packet.TypeCountdownSync:        {packet.RoleMember, (*Lobby).onCountdownSync},
	packet.TypeReservationRequest:   {packet.RoleHost, (*Lobby).onReservationRequest},
	packet.TypeReservationResult:    {packet.RoleMember, (*Lobby).onReservationResult},
	packet.TypeReservationIdentify:  {packet.RoleHost, (*Lobby).onReservationIdentify},
	packet.TypeGameHasStarted:       {packet.RoleMember, (*Lobby).onGameHasStarted},
	packet.TypeJoinGame:             {packet.RoleMember, (*Lobby).onJoinGame},
	packet.TypeMoveSession:          {packet.RoleMember, (*Lobby).onMoveSession},
	packet.TypeVoteCandidates:       {packet.RoleMember, (*Lobby).onVoteCandidates},
	packet.TypeGameEnded:            {packet.RoleMember, (*Lobby).onGameEnded},
	packet.TypeRequestCountdownSync: {packet.RoleHost, (*Lobby).onRequestCountdownSync},
	packet.TypeDedicatedServerInfo:  {packet.RoleMember, (*Lobby).onDedicatedServerInfo},
}

func (l *Lobby) dispatch(from model.ConnectionID, b []byte) {
	t, err := packet.PeekType(b)
	if err != nil {
		l.reject("invalid", "header", from, err)
		return
	}
	h, ok := handlers[t]
	if !ok {
		l.reject(t.String(), "unhandled", from, nil)
		return
	}
	if !l.allow(from) {
		l.reject(t.String(), "rate", from, nil)
		return
	}
	if !l.plays(h.role, from) {
		l.reject(t.String(), "role", from, nil)
		return
	}
	msg, err := packet.Decode(b)
	if err != nil {
		l.reject(t.String(), "decode", from, err)
		return
	}
	if _, known := l.roster.Get(from); !known {
		l.roster.Placeholder(from)
	}
	metrics.RecordPacket("in", t.String())
	h.fn(l, from, msg)
}

// plays reports whether the local side may handle a message of role r from
// the given sender. Member messages are only accepted from the host.
func (l *Lobby) plays(r packet.Role, from model.ConnectionID) bool {
	if r == packet.RoleHost {
		return l.host
	}
	if l.host {
		return false
	}
	return !l.hostConn.Valid() || from == l.hostConn
}

func (l *Lobby) allow(from model.ConnectionID) bool {
	if l.cfg.PacketRate <= 0 {
		return true
	}
	lim, ok := l.limiters[from]
	if !ok {
		burst := l.cfg.PacketBurst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(l.cfg.PacketRate), burst)
		l.limiters[from] = lim
	}
	return lim.AllowN(l.now(), 1)
}

func (l *Lobby) reject(typ, reason string, from model.ConnectionID, err error) {
	metrics.RecordPacketRejected(typ, reason)
	l.log.Debug().Err(err).
		Str(xglog.FieldPacket, typ).
		Str("reason", reason).
		Uint32(xglog.FieldConn, uint32(from)).
		Msg("packet rejected")
}

func (l *Lobby) send(to model.ConnectionID, m packet.Message) {
	b, err := packet.Encode(m)
	if err != nil {
		l.log.Error().Err(err).Str(xglog.FieldPacket, m.Type().String()).Msg("encode packet")
		return
	}
	l.sendRaw(to, m.Type(), b)
}

func (l *Lobby) sendRaw(to model.ConnectionID, t packet.Type, b []byte) {
	if err := l.deps.Service.SendTo(l.handle, to, b); err != nil {
		l.log.Warn().Err(err).Str(xglog.FieldPacket, t.String()).Uint32(xglog.FieldConn, uint32(to)).Msg("send packet")
		return
	}
	metrics.RecordPacket("out", t.String())
}

// broadcast sends m to every confirmed member except the local one.
func (l *Lobby) broadcast(m packet.Message) {
	if !l.handle.Valid() {
		return
	}
	b, err := packet.Encode(m)
	if err != nil {
		l.log.Error().Err(err).Str(xglog.FieldPacket, m.Type().String()).Msg("encode packet")
		return
	}
	for _, member := range l.roster.Members() {
		if member.Conn == l.localConn {
			continue
		}
		l.sendRaw(member.Conn, m.Type(), b)
	}
}

func (l *Lobby) sendToHost(m packet.Message) {
	if l.host || !l.hostConn.Valid() || !l.handle.Valid() {
		return
	}
	l.send(l.hostConn, m)
}

func (l *Lobby) onCountdownSync(_ model.ConnectionID, m packet.Message) {
	msg := m.(*packet.CountdownSync)
	l.countdown.stage = msg.Stage
	l.countdown.initial = msg.Initial
	l.countdown.remaining = seconds(msg.TimeRemaining)
	if msg.VotingEnabled && msg.VotingClosed && !l.votes.Closed() {
		l.votes.ApplyRemoteClose(msg.LeftWins)
	}
}

func (l *Lobby) onReservationRequest(from model.ConnectionID, m packet.Message) {
	msg := m.(*packet.ReservationRequest)
	r := l.res.Reserve(msg.Members, l.cfg.Capacity(), l.roster.Len())
	metrics.RecordReservation(r.String())
	l.log.Debug().Uint32(xglog.FieldConn, uint32(from)).Int("members", len(msg.Members)).Str("result", r.String()).Msg("reservation request")
	l.send(from, &packet.ReservationResult{Result: wireReservation(r)})
}

func (l *Lobby) onReservationResult(_ model.ConnectionID, m packet.Message) {
	msg := m.(*packet.ReservationResult)
	r := fromWireReservation(msg.Result)
	metrics.RecordReservation(r.String())
	if l.reservationReplay {
		l.reservationReplay = false
		l.log.Debug().Str("result", r.String()).Msg("reservation replay answered")
		return
	}
	if r == reservation.Success {
		l.res.Hold(l.reservationPending)
	}
	l.reservationPending = nil
	l.deps.Squad.OnReservationResult(r, msg.Secondary || l.reservationSecondary)
	l.reservationSecondary = false
}

func (l *Lobby) onReservationIdentify(from model.ConnectionID, m packet.Message) {
	msg := m.(*packet.ReservationIdentify)
	if msg.Conn != from {
		l.log.Debug().Uint32(xglog.FieldConn, uint32(from)).Uint32("claimed", uint32(msg.Conn)).Msg("identify for another connection")
	}
	if l.res.Consume(msg.Conn) {
		l.log.Debug().Uint32(xglog.FieldConn, uint32(msg.Conn)).Msg("reservation consumed")
	}
}

func (l *Lobby) onGameHasStarted(_ model.ConnectionID, _ packet.Message) {
	l.remoteStarted = true
	l.followStart()
}

// followStart moves a member from Lobby into the host's match.
func (l *Lobby) followStart() {
	if !l.remoteStarted || l.host || l.requested != model.StateLobby {
		return
	}
	if err := l.checkRank(); err != nil {
		return
	}
	l.resolveElection()
	_ = l.request(lifecycle.EvStartMatch)
}

func (l *Lobby) onJoinGame(_ model.ConnectionID, m packet.Message) {
	msg := *m.(*packet.JoinGame)
	l.joinInfo = &msg
	l.match.Map, l.match.Mode = msg.Map, msg.Mode
}

func (l *Lobby) onMoveSession(_ model.ConnectionID, m packet.Message) {
	msg := m.(*packet.MoveSession)
	if !msg.Target.Valid() || msg.Target == l.session {
		return
	}
	l.log.Info().Str("target", string(msg.Target)).Msg("following host into another session")
	l.rejoinTarget = msg.Target
	l.leaveWith(false, "move")
}

func (l *Lobby) onVoteCandidates(_ model.ConnectionID, m packet.Message) {
	msg := m.(*packet.VoteCandidates)
	l.votes.SetRemoteCandidates(int(msg.Cursor),
		vote.Candidate{Map: msg.LeftMap, Mode: msg.LeftMode},
		vote.Candidate{Map: msg.RightMap, Mode: msg.RightMode},
	)
}

func (l *Lobby) onGameEnded(_ model.ConnectionID, _ packet.Message) {
	l.remoteStarted = false
	if l.requested != model.StateGame {
		return
	}
	l.queue.Add(taskqueue.KindSessionEnd, false)
	_ = l.request(lifecycle.EvGameEnded)
}

func (l *Lobby) onRequestCountdownSync(from model.ConnectionID, _ packet.Message) {
	l.send(from, l.countdownSync())
}

func (l *Lobby) onDedicatedServerInfo(_ model.ConnectionID, m packet.Message) {
	l.dedicatedAddr = m.(*packet.DedicatedServerInfo).Address
}

func wireReservation(r reservation.Result) packet.ReservationOutcome {
	switch r {
	case reservation.Success:
		return packet.ReservationSuccess
	case reservation.NoneNeeded:
		return packet.ReservationNoneNeeded
	default:
		return packet.ReservationFail
	}
}

func fromWireReservation(o packet.ReservationOutcome) reservation.Result {
	switch o {
	case packet.ReservationSuccess:
		return reservation.Success
	case packet.ReservationNoneNeeded:
		return reservation.NoneNeeded
	default:
		return reservation.Fail
	}
}
