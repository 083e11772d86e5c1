// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package roster keeps the locally known session membership.
//
// Entries are two-phase: a packet that references an unknown connection
// creates a placeholder, and the authoritative join event resolves it.
package roster

import (
	"time"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// Roster is owned by the lobby goroutine and is not safe for concurrent use.
type Roster struct {
	members            []*model.Member
	placeholderTimeout time.Duration
	now                func() time.Time
}

func New(placeholderTimeout time.Duration, now func() time.Time) *Roster {
	if now == nil {
		now = time.Now
	}
	return &Roster{placeholderTimeout: placeholderTimeout, now: now}
}

// SetPlaceholderTimeout changes the expiry used by Tick.
func (r *Roster) SetPlaceholderTimeout(d time.Duration) { r.placeholderTimeout = d }

func (r *Roster) find(conn model.ConnectionID) int {
	for i, m := range r.members {
		if m.Conn == conn {
			return i
		}
	}
	return -1
}

// Join upserts the member for info.Conn. A repeated join updates the
// existing entry; a placeholder is resolved in place. The bool reports
// whether the roster gained a confirmed member.
func (r *Roster) Join(info model.MemberInfo, data model.MemberData) (*model.Member, bool) {
	if i := r.find(info.Conn); i >= 0 {
		m := r.members[i]
		added := m.Placeholder
		m.Placeholder = false
		m.User = info.User
		m.Name = info.Name
		m.IsHost = info.IsHost
		m.Data = data
		return m, added
	}
	m := &model.Member{
		Conn:      info.Conn,
		User:      info.User,
		Name:      info.Name,
		IsHost:    info.IsHost,
		Data:      data,
		CreatedAt: r.now(),
	}
	r.members = append(r.members, m)
	return m, true
}

// Placeholder returns the entry for conn, creating an unresolved one if the
// join event has not arrived yet.
func (r *Roster) Placeholder(conn model.ConnectionID) *model.Member {
	if i := r.find(conn); i >= 0 {
		return r.members[i]
	}
	m := &model.Member{Conn: conn, Placeholder: true, CreatedAt: r.now()}
	r.members = append(r.members, m)
	return m
}

// Update replaces the profile of a known member.
func (r *Roster) Update(conn model.ConnectionID, data model.MemberData) bool {
	i := r.find(conn)
	if i < 0 {
		return false
	}
	r.members[i].Data = data
	return true
}

// Leave removes conn and returns the removed entry.
func (r *Roster) Leave(conn model.ConnectionID) (model.Member, bool) {
	i := r.find(conn)
	if i < 0 {
		return model.Member{}, false
	}
	m := *r.members[i]
	r.remove(i)
	return m, true
}

func (r *Roster) remove(i int) {
	copy(r.members[i:], r.members[i+1:])
	r.members[len(r.members)-1] = nil
	r.members = r.members[:len(r.members)-1]
}

// Get returns the live entry for conn, placeholders included.
func (r *Roster) Get(conn model.ConnectionID) (*model.Member, bool) {
	i := r.find(conn)
	if i < 0 {
		return nil, false
	}
	return r.members[i], true
}

// Len counts confirmed members.
func (r *Roster) Len() int {
	n := 0
	for _, m := range r.members {
		if !m.Placeholder {
			n++
		}
	}
	return n
}

// Members returns a copy of the confirmed members in join order.
func (r *Roster) Members() []model.Member {
	out := make([]model.Member, 0, len(r.members))
	for _, m := range r.members {
		if !m.Placeholder {
			out = append(out, *m)
		}
	}
	return out
}

// Placeholders counts unresolved entries.
func (r *Roster) Placeholders() int { return len(r.members) - r.Len() }

// Tick expires placeholders whose join event never arrived.
func (r *Roster) Tick() []model.ConnectionID {
	if r.placeholderTimeout <= 0 {
		return nil
	}
	now := r.now()
	var expired []model.ConnectionID
	for i := 0; i < len(r.members); {
		m := r.members[i]
		if m.Placeholder && now.Sub(m.CreatedAt) >= r.placeholderTimeout {
			expired = append(expired, m.Conn)
			r.remove(i)
			continue
		}
		i++
	}
	return expired
}

// Promote prepares the roster for the local process becoming host: unresolved
// entries are dropped and every remaining entry is marked fully connected.
func (r *Roster) Promote() []model.ConnectionID {
	var dropped []model.ConnectionID
	for i := 0; i < len(r.members); {
		m := r.members[i]
		if m.Placeholder {
			dropped = append(dropped, m.Conn)
			r.remove(i)
			continue
		}
		m.FullyConnected = true
		i++
	}
	return dropped
}

// SetHost marks conn as the only host entry.
func (r *Roster) SetHost(conn model.ConnectionID) {
	for _, m := range r.members {
		m.IsHost = m.Conn == conn
	}
}

// Votes returns every confirmed member's current choice.
func (r *Roster) Votes() []model.VoteChoice {
	out := make([]model.VoteChoice, 0, len(r.members))
	for _, m := range r.members {
		if !m.Placeholder {
			out = append(out, m.Data.Vote)
		}
	}
	return out
}

// ResetVotes clears every member's vote.
func (r *Roster) ResetVotes() {
	for _, m := range r.members {
		m.Data.Vote = model.VoteNone
	}
}

// MarkMustLeaveBeforeHost flags every member except local.
func (r *Roster) MarkMustLeaveBeforeHost(local model.ConnectionID) int {
	n := 0
	for _, m := range r.members {
		if m.Conn == local || m.Placeholder {
			continue
		}
		m.MustLeaveBeforeHost = true
		n++
	}
	return n
}

// PendingMustLeave counts flagged members still present.
func (r *Roster) PendingMustLeave() int {
	n := 0
	for _, m := range r.members {
		if m.MustLeaveBeforeHost {
			n++
		}
	}
	return n
}

// RemoteCount counts confirmed members other than local.
func (r *Roster) RemoteCount(local model.ConnectionID) int {
	n := 0
	for _, m := range r.members {
		if !m.Placeholder && m.Conn != local {
			n++
		}
	}
	return n
}

// AverageSkill is the mean skill of confirmed members.
func (r *Roster) AverageSkill() uint32 {
	var sum, n uint32
	for _, m := range r.members {
		if !m.Placeholder {
			sum += uint32(m.Data.Skill)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// Clear empties the roster.
func (r *Roster) Clear() {
	for i := range r.members {
		r.members[i] = nil
	}
	r.members = r.members[:0]
}

// ClearMustLeave drops every must-leave-before-host flag.
func (r *Roster) ClearMustLeave() {
	for _, m := range r.members {
		m.MustLeaveBeforeHost = false
	}
}
