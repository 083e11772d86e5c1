// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package reservation holds time-bounded slot reservations for parties that
// are still connecting.
package reservation

import (
	"time"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// MaxReservations is the fixed table size.
const MaxReservations = 16

// Result of a reservation attempt.
type Result uint8

const (
	Success Result = iota
	Fail
	NoneNeeded
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Fail:
		return "fail"
	case NoneNeeded:
		return "none_needed"
	default:
		return "unknown"
	}
}

// Slot is one table entry. A zero Conn marks a free slot.
type Slot struct {
	Conn model.ConnectionID
	At   time.Time
}

// Table is owned by the lobby goroutine and is not safe for concurrent use.
type Table struct {
	slots   [MaxReservations]Slot
	timeout time.Duration
	now     func() time.Time
}

func New(timeout time.Duration, now func() time.Time) *Table {
	if now == nil {
		now = time.Now
	}
	return &Table{timeout: timeout, now: now}
}

// SetTimeout changes the expiry used by later checks.
func (t *Table) SetTimeout(d time.Duration) { t.timeout = d }

func (t *Table) valid(s Slot, now time.Time) bool {
	return s.Conn.Valid() && now.Sub(s.At) < t.timeout
}

// Reserve admits the requested connections if requester plus party fit into
// the free capacity not already held by valid reservations. Connections that
// already hold a valid reservation are not counted again.
func (t *Table) Reserve(requested []model.ConnectionID, capacity, members int) Result {
	now := t.now()
	needed := make([]model.ConnectionID, 0, len(requested))
	for _, c := range requested {
		if !c.Valid() || t.holds(c, now) || contains(needed, c) {
			continue
		}
		needed = append(needed, c)
	}
	if len(needed) == 0 {
		return NoneNeeded
	}

	reserved := t.ValidCount()
	empty := capacity - members
	if len(needed)+1 > empty-reserved {
		return Fail
	}
	free := 0
	for _, s := range t.slots {
		if !t.valid(s, now) {
			free++
		}
	}
	if free < len(needed) {
		return Fail
	}

	i := 0
	for j := range t.slots {
		if i == len(needed) {
			break
		}
		if t.valid(t.slots[j], now) {
			continue
		}
		t.slots[j] = Slot{Conn: needed[i], At: now}
		i++
	}
	return Success
}

// Hold records conns without a capacity check. A member uses it to mirror
// what the host admitted for its party so the entries survive a migration.
// It returns how many entries were added.
func (t *Table) Hold(conns []model.ConnectionID) int {
	now := t.now()
	n := 0
	for _, c := range conns {
		if !c.Valid() || t.holds(c, now) {
			continue
		}
		for j := range t.slots {
			if !t.valid(t.slots[j], now) {
				t.slots[j] = Slot{Conn: c, At: now}
				n++
				break
			}
		}
	}
	return n
}

// Held returns the connections with a valid reservation.
func (t *Table) Held() []model.ConnectionID {
	now := t.now()
	var out []model.ConnectionID
	for _, s := range t.slots {
		if t.valid(s, now) {
			out = append(out, s.Conn)
		}
	}
	return out
}

// Consume clears conn's reservation and expires stale entries while scanning.
// It reports whether conn held a valid reservation.
func (t *Table) Consume(conn model.ConnectionID) bool {
	now := t.now()
	found := false
	for i, s := range t.slots {
		if !s.Conn.Valid() {
			continue
		}
		if s.Conn == conn {
			found = found || t.valid(s, now)
			t.slots[i] = Slot{}
			continue
		}
		if !t.valid(s, now) {
			t.slots[i] = Slot{}
		}
	}
	return found
}

// Expire frees every stale slot and returns how many were freed.
func (t *Table) Expire() int {
	now := t.now()
	n := 0
	for i, s := range t.slots {
		if s.Conn.Valid() && !t.valid(s, now) {
			t.slots[i] = Slot{}
			n++
		}
	}
	return n
}

// ValidCount is the number of unexpired reservations.
func (t *Table) ValidCount() int {
	now := t.now()
	n := 0
	for _, s := range t.slots {
		if t.valid(s, now) {
			n++
		}
	}
	return n
}

// Holds reports whether conn has an unexpired reservation.
func (t *Table) Holds(conn model.ConnectionID) bool { return t.holds(conn, t.now()) }

func (t *Table) holds(conn model.ConnectionID, now time.Time) bool {
	for _, s := range t.slots {
		if s.Conn == conn && t.valid(s, now) {
			return true
		}
	}
	return false
}

// Clear drops every reservation.
func (t *Table) Clear() { t.slots = [MaxReservations]Slot{} }

// Snapshot returns the valid entries.
func (t *Table) Snapshot() []Slot {
	now := t.now()
	var out []Slot
	for _, s := range t.slots {
		if t.valid(s, now) {
			out = append(out, s)
		}
	}
	return out
}

// ShouldConcede resolves two sessions trying to merge into each other: the
// side with the lower identifier cancels its move.
func ShouldConcede(local, remote model.SessionID) bool {
	return local < remote
}

func contains(cs []model.ConnectionID, c model.ConnectionID) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}
