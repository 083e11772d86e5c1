// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"time"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/taskqueue"
)

const (
	cooldownJoin      = "join"
	cooldownStart     = "start"
	cooldownReturn    = "return_to_lobby"
	cooldownMigration = "migration"
	cooldownInterval  = "interval"
)

// bestHost schedules the periodic best-host check. Armed cooldowns compete
// with the periodic interval and the earliest deadline fires.
type bestHost struct {
	deadlines map[string]time.Time
	next      time.Time
}

func newBestHost() bestHost {
	return bestHost{deadlines: make(map[string]time.Time)}
}

func (b *bestHost) reset(now time.Time, interval time.Duration) {
	clear(b.deadlines)
	b.next = time.Time{}
	if interval > 0 {
		b.next = now.Add(interval)
	}
}

// due returns the name of the earliest expired deadline.
func (b *bestHost) due(now time.Time) (string, bool) {
	name, at := "", time.Time{}
	for n, d := range b.deadlines {
		if at.IsZero() || d.Before(at) || (d.Equal(at) && n < name) {
			name, at = n, d
		}
	}
	if at.IsZero() || (!b.next.IsZero() && b.next.Before(at)) {
		name, at = cooldownInterval, b.next
	}
	if at.IsZero() || now.Before(at) {
		return "", false
	}
	return name, true
}

func (b *bestHost) fired(now time.Time, interval time.Duration) {
	clear(b.deadlines)
	b.next = time.Time{}
	if interval > 0 {
		b.next = now.Add(interval)
	}
}

func (l *Lobby) armBestHost(name string, d time.Duration) {
	if d <= 0 {
		return
	}
	l.best.deadlines[name] = l.now().Add(d)
}

func (l *Lobby) tickBestHost() {
	if !l.cfg.BestHost.Enabled || !l.host || !l.handle.Valid() || l.migrating {
		return
	}
	if !l.formedByMatchmaking && !l.cfg.Debug.ForceBestHost {
		return
	}
	switch l.state {
	case model.StateLobby:
		if l.balancingNearStart() {
			return
		}
	case model.StateGame:
	default:
		return
	}
	now := l.now()
	name, ok := l.best.due(now)
	if !ok {
		return
	}
	l.best.fired(now, l.cfg.BestHost.Interval)
	if l.queue.Add(taskqueue.KindEnsureBestHost, false) {
		l.log.Debug().Str("trigger", name).Msg("best-host check scheduled")
	}
}

func (l *Lobby) balancingNearStart() bool {
	c := l.countdown
	return c.stage != model.StageWaitingForPlayers && c.remaining <= l.cfg.BalanceWindow
}
