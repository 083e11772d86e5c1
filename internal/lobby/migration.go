// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"fmt"

	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
	"github.com/ManuGH/lobbyd/internal/lobby/taskqueue"
	"github.com/ManuGH/lobbyd/internal/metrics"
)

func (l *Lobby) onMigration(m migrationMsg) {
	if m.phase != phaseInitiate {
		metrics.RecordMigrationPhase(string(m.phase))
	}
	if !l.accepts(m.h) {
		l.log.Debug().Str("phase", string(m.phase)).Msg("migration event for another session")
		return
	}
	l.log.Info().
		Str("phase", string(m.phase)).
		Uint32(xglog.FieldHandle, uint32(m.h)).
		Bool("new_host", m.isNewHost).
		Msg("host migration")

	switch m.phase {
	case phaseInitiate:
		l.migrating = true
		l.cancelMove()
		l.queue.Cancel(taskqueue.KindQuery)
		l.queue.Cancel(taskqueue.KindEnsureBestHost)
		if m.decision == ports.MigrationTerminate {
			l.log.Warn().Str("state", string(l.state)).Msg("migration vetoed outside a running match")
		}
	case phaseDemote:
		l.host = false
	case phasePromote:
		l.promote()
	case phaseFinalise:
		l.finalise(m.h, m.isNewHost)
	case phaseTerminate, phaseReset:
		l.migrating = false
		l.sessionLost("migration_" + string(m.phase))
	}
}

// promote takes over hosting. Entries the roster never confirmed cannot be
// migrated and are dropped.
func (l *Lobby) promote() {
	l.host = true
	for _, conn := range l.roster.Promote() {
		delete(l.limiters, conn)
		l.deps.Balancer.OnPlayerRemoved(conn)
		l.log.Debug().Uint32(xglog.FieldConn, uint32(conn)).Msg("unresolved member dropped on promotion")
	}
	if l.localConn.Valid() {
		l.hostConn = l.localConn
		l.roster.SetHost(l.localConn)
	}
	l.votes.InvalidateCandidates()
	metrics.SetRosterSize(l.roster.Len())
}

func (l *Lobby) finalise(h model.SessionHandle, isNewHost bool) {
	l.migrating = false
	if h.Valid() {
		l.handle = h
	}
	if id := l.deps.Service.SessionID(l.handle); id.Valid() {
		l.session = id
	}
	if !isNewHost {
		l.replayReservations()
		return
	}

	l.queue.Add(taskqueue.KindMigrate, false)
	l.attrsDirty = true
	l.refreshSkill()
	l.queue.Add(taskqueue.KindSetLocalUserData, false)
	if l.cfg.Dedicated.Provisioned {
		l.queue.Add(taskqueue.KindDedicatedSetup, false)
	}
	switch l.requested {
	case model.StateGame:
		l.broadcast(&packet.GameHasStarted{})
		l.broadcast(l.joinGame())
	case model.StateLobby:
		l.broadcastCandidates()
		l.broadcast(l.countdownSync())
	}
	l.best.reset(l.now(), l.cfg.BestHost.Interval)
	l.armBestHost(cooldownMigration, l.cfg.BestHost.AfterMigration)
}

// sessionLost ends a session that cannot continue. A dedicated server
// terminates; an interactive client is sent back to the menu.
func (l *Lobby) sessionLost(reason string) {
	err := fmt.Errorf("%w: %s", ErrSessionLost, reason)
	l.log.Error().Err(err).Msg("session lost")
	if l.cfg.Role == model.RoleDedicated {
		l.fatal(err)
	} else {
		l.warnUser(ports.WarnSessionClosed, reason)
	}
	l.leaveWith(false, reason)
}
