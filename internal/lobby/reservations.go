// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"slices"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/reservation"
	"github.com/ManuGH/lobbyd/internal/metrics"
)

// MakeReservations holds slots for a joining party. The host decides
// directly; a member asks the host and the answer arrives through the squad
// callback.
func (l *Lobby) MakeReservations(members []model.ConnectionID, secondary bool) error {
	if !l.handle.Valid() {
		return model.ErrNoSession
	}
	if l.host {
		r := l.res.Reserve(members, l.cfg.Capacity(), l.roster.Len())
		metrics.RecordReservation(r.String())
		l.deps.Squad.OnReservationResult(r, secondary)
		return nil
	}
	if len(members) > packet.MaxReservationMembers {
		l.deps.Squad.OnReservationResult(reservation.Fail, secondary)
		return nil
	}
	l.reservationSecondary = secondary
	l.reservationPending = slices.Clone(members)
	l.sendToHost(&packet.ReservationRequest{Members: members})
	return nil
}

// replayReservations asks a new host to hold the party slots the previous
// host granted this member. Party members that already arrived are skipped.
func (l *Lobby) replayReservations() {
	var held []model.ConnectionID
	for _, c := range l.res.Held() {
		if _, ok := l.roster.Get(c); !ok {
			held = append(held, c)
		}
	}
	if len(held) == 0 {
		return
	}
	l.reservationReplay = true
	l.log.Debug().Int("members", len(held)).Msg("replaying reservations to new host")
	l.sendToHost(&packet.ReservationRequest{Members: held})
}
