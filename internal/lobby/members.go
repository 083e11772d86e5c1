// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/metrics"
)

func (l *Lobby) memberData(info model.MemberInfo) model.MemberData {
	if len(info.Data) == 0 {
		return model.MemberData{}
	}
	d, err := packet.DecodeMemberData(info.Data)
	if err != nil {
		l.log.Debug().Err(err).Uint32(xglog.FieldConn, uint32(info.Conn)).Msg("bad member data")
		return model.MemberData{}
	}
	return d
}

// onUserJoined is an upsert: a repeated join for a known connection updates
// the entry, and a placeholder is resolved.
func (l *Lobby) onUserJoined(info model.MemberInfo) {
	if !info.Conn.Valid() {
		return
	}
	data := l.memberData(info)
	if info.Conn == l.localConn && l.localConn.Valid() {
		data = l.localData
	}
	_, added := l.roster.Join(info, data)
	if info.IsHost {
		l.hostConn = info.Conn
		l.roster.SetHost(info.Conn)
	}
	if added {
		l.deps.Balancer.OnPlayerAdded(info.Conn, data)
		l.log.Debug().Uint32(xglog.FieldConn, uint32(info.Conn)).Str("name", info.Name).Msg("member joined")
	} else {
		l.deps.Balancer.OnPlayerUpdated(info.Conn, data)
	}
	metrics.SetRosterSize(l.roster.Len())
	l.refreshSkill()
	if added && l.host && info.Conn != l.localConn {
		l.greet(info.Conn)
	}
}

func (l *Lobby) onUserLeft(conn model.ConnectionID) {
	if _, ok := l.roster.Leave(conn); !ok {
		return
	}
	delete(l.limiters, conn)
	l.deps.Balancer.OnPlayerRemoved(conn)
	metrics.SetRosterSize(l.roster.Len())
	l.log.Debug().Uint32(xglog.FieldConn, uint32(conn)).Msg("member left")
	l.refreshSkill()
	if l.move.announced && l.roster.PendingMustLeave() == 0 {
		l.completeMove()
	}
}

func (l *Lobby) onUserUpdated(info model.MemberInfo) {
	if !info.Conn.Valid() {
		return
	}
	if m, ok := l.roster.Get(info.Conn); !ok || m.Placeholder {
		l.onUserJoined(info)
		return
	}
	data := l.memberData(info)
	if info.Conn == l.localConn {
		data = l.localData
	}
	l.roster.Update(info.Conn, data)
	if info.IsHost && l.hostConn != info.Conn {
		l.hostConn = info.Conn
		l.roster.SetHost(info.Conn)
	}
	l.deps.Balancer.OnPlayerUpdated(info.Conn, data)
	l.refreshSkill()
}

func (l *Lobby) refreshSkill() {
	if l.host {
		l.setAttr(model.AttrSkill, l.roster.AverageSkill())
	}
}

// greet brings a newly joined member up to date with the host's state.
func (l *Lobby) greet(conn model.ConnectionID) {
	if l.cfg.Voting.Enabled {
		l.send(conn, l.candidates())
	}
	l.send(conn, l.countdownSync())
	if l.dedicatedAddr != "" {
		l.send(conn, &packet.DedicatedServerInfo{Address: l.dedicatedAddr})
	}
	if l.requested == model.StateGame {
		l.send(conn, &packet.GameHasStarted{})
		l.send(conn, l.joinGame())
	}
}
