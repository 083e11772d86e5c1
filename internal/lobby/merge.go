// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"fmt"
	"time"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/reservation"
)

// move is a host-driven merge into another session. It is announced on the
// tick after MergeInto so a crossing merge intent can still cancel it.
type move struct {
	target    model.SessionID
	deadline  time.Time
	active    bool
	announced bool
}

// MergeInto moves this session's members, then the host, into target.
func (l *Lobby) MergeInto(target model.SessionID) error {
	if !l.host {
		return model.ErrNotHost
	}
	if l.requested != model.StateLobby {
		return fmt.Errorf("merge from %s: %w", l.requested, model.ErrIllegalState)
	}
	if !target.Valid() || target == l.session {
		return fmt.Errorf("merge into %q: %w", target, model.ErrMergeConflict)
	}
	if l.move.active {
		return fmt.Errorf("merge already running: %w", model.ErrMergeConflict)
	}
	l.move = move{target: target, deadline: l.now().Add(l.cfg.MoveTimeout), active: true}
	l.log.Info().Str("target", string(target)).Msg("merge started")
	return nil
}

// OnRemoteMergeIntent reports whether this side conceded because remote is
// merging into us while we merge into it. A move already announced to the
// members is never withdrawn.
func (l *Lobby) OnRemoteMergeIntent(remote model.SessionID) bool {
	if !l.move.active || l.move.target != remote || l.move.announced {
		return false
	}
	if !reservation.ShouldConcede(l.session, remote) {
		return false
	}
	l.log.Info().Str("remote", string(remote)).Msg("crossing merge, conceding")
	l.cancelMove()
	return true
}

func (l *Lobby) cancelMove() {
	if !l.move.active {
		return
	}
	if l.move.announced {
		l.roster.ClearMustLeave()
	}
	l.move = move{}
}

func (l *Lobby) tickMove() {
	if !l.move.active {
		return
	}
	if !l.move.announced {
		l.move.announced = true
		l.broadcast(&packet.MoveSession{Target: l.move.target})
		if l.roster.MarkMustLeaveBeforeHost(l.localConn) == 0 {
			l.completeMove()
		}
		return
	}
	if l.roster.PendingMustLeave() == 0 || !l.now().Before(l.move.deadline) {
		l.completeMove()
	}
}

func (l *Lobby) completeMove() {
	target := l.move.target
	l.move = move{}
	l.rejoinTarget = target
	l.leaveWith(false, "merge")
}
