// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"github.com/ManuGH/lobbyd/internal/lobby/events"
	"github.com/ManuGH/lobbyd/internal/lobby/lifecycle"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/taskqueue"
	"github.com/ManuGH/lobbyd/internal/metrics"
)

// LeaveSession moves to Leaving and tears the session down. forceRelease
// additionally releases a provisioned dedicated server.
func (l *Lobby) LeaveSession(forceRelease bool) {
	l.leaveWith(forceRelease, "user")
}

func (l *Lobby) leaveWith(forceRelease bool, reason string) {
	switch l.requested {
	case model.StateNone:
		return
	case model.StateLeaving:
		if forceRelease {
			l.releaseDedicated()
		}
		return
	}

	l.queue.CancelAll(false)
	l.queue.Cancel(taskqueue.KindCreate)
	l.queue.Cancel(taskqueue.KindJoin)
	l.cancelMove()
	if forceRelease {
		l.releaseDedicated()
	}
	if err := l.request(lifecycle.EvLeave); err != nil {
		return
	}
	l.leave = leaveState{since: l.now(), reason: reason}
	l.log.Info().Str("reason", reason).Bool("force_release", forceRelease).Msg("leaving session")

	if !l.handle.Valid() {
		if t, ok := l.queue.InFlight(); ok && t.Cancelling {
			return
		}
		l.finishLeave(reason, lifecycle.EvLeft)
		return
	}
	l.queue.SetClosing(true)
	if l.host && l.roster.RemoteCount(l.localConn) > 0 {
		l.queue.Add(taskqueue.KindTerminateHostHinting, false)
	}
	if l.started {
		l.queue.Add(taskqueue.KindSessionEnd, false)
	}
	l.queue.Add(taskqueue.KindDelete, false)
}

func (l *Lobby) releaseDedicated() {
	if l.deps.Provisioner == nil || !l.session.Valid() {
		return
	}
	l.deps.Provisioner.Release(l.session)
	l.dedicatedAddr = ""
}

// finishLeave drops every trace of the session and moves on to None, or
// straight back to FindGame when a rejoin is pending.
func (l *Lobby) finishLeave(reason string, ev lifecycle.EventKind) {
	if l.requested != model.StateLeaving {
		return
	}
	closed := l.session

	l.handle = model.InvalidHandle
	l.session = model.InvalidSessionID
	l.host = false
	l.hostConn = model.InvalidConnection
	l.localConn = model.InvalidConnection
	l.started = false
	l.migrating = false
	l.queue.PurgeHandleTasks()
	l.queue.SetClosing(false)
	for _, m := range l.roster.Members() {
		l.deps.Balancer.OnPlayerRemoved(m.Conn)
	}
	l.roster.Clear()
	l.res.Clear()
	l.reservationPending = nil
	l.reservationReplay = false
	clear(l.limiters)
	l.dedicatedAddr = ""
	l.joinInfo = nil
	l.remoteStarted = false
	l.votes.Reset()
	metrics.SetRosterSize(0)

	if closed.Valid() {
		l.publishEvent(events.TopicSession, events.SessionClosed{Session: closed, Reason: reason, At: l.now()})
	}
	l.log.Info().Str("reason", reason).Str("event", string(ev)).Msg("session closed")
	l.log = l.baseLog

	target := l.rejoinTarget
	l.rejoinTarget = model.InvalidSessionID
	switch {
	case ev == lifecycle.EvLeft && target.Valid():
		if l.request(lifecycle.EvFindGame) == nil {
			l.pendingJoin = target
			l.queue.Add(taskqueue.KindJoin, false)
		}
	case ev == lifecycle.EvLeft && l.cfg.Debug.RejoinAfterLeave && reason == "user":
		if l.request(lifecycle.EvFindGame) == nil {
			l.queue.Add(taskqueue.KindCreate, false)
		}
	default:
		_ = l.request(ev)
	}
}

// tickLeave bounds the time spent in Leaving.
func (l *Lobby) tickLeave() {
	if l.requested != model.StateLeaving || l.cfg.LeaveTimeout <= 0 {
		return
	}
	if l.now().Sub(l.leave.since) < l.cfg.LeaveTimeout {
		return
	}
	l.log.Warn().Dur("timeout", l.cfg.LeaveTimeout).Msg("leave timed out, dropping session")
	l.queue.Reset()
	l.rejoinTarget = model.InvalidSessionID
	l.finishLeave("timeout", lifecycle.EvLeaveTimeout)
}
