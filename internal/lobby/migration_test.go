// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/lobbyd/internal/lobby/loopback"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/reservation"
)

func TestHostDrop_NewHostKeepsVoteLeader(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 8
	cfg.Voting.Enabled = true
	h := newHarness(t, loopback.Options{})
	host := h.add("host", cfg)
	m1 := h.add("m1", cfg)
	m2 := h.add("m2", cfg)
	sid := h.host(host)
	h.join(m1, sid)
	h.join(m2, sid)

	require.NoError(t, m1.l.SetLocalVote(model.VoteLeft))
	h.until(func() bool {
		leader, n := m2.l.votes.Leader()
		return leader == model.VoteLeft && n == 1
	}, "member tallies the first vote")

	require.NoError(t, m2.l.SetLocalVote(model.VoteRight))
	h.until(func() bool {
		left, right := m1.l.votes.Counts()
		return left == 1 && right == 1
	}, "member sees the tie")

	h.hub.Drop(host.ep)
	h.until(m1.l.IsHost, "m1 promoted")
	h.tick(5)

	leader, highest := m1.l.votes.Leader()
	assert.Equal(t, model.VoteLeft, leader)
	assert.Equal(t, 1, highest)
	left, right := m1.l.votes.Counts()
	assert.Equal(t, 1, left)
	assert.Equal(t, 1, right)
}

func TestHostDrop_ReservationsFollowNewHost(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	m1 := h.add("m1", testConfig())
	m2 := h.add("m2", testConfig())
	sid := h.host(host)
	h.join(m1, sid)
	h.join(m2, sid)
	h.until(func() bool { return host.l.roster.Len() == 3 }, "host sees members")

	party := []model.ConnectionID{201, 202}
	require.NoError(t, m2.l.MakeReservations(party, false))
	h.until(func() bool { return len(m2.squad.Results()) == 1 }, "reservation answered")
	require.Equal(t, reservation.Success, m2.squad.Results()[0])
	assert.Equal(t, 2, host.l.res.ValidCount())
	assert.ElementsMatch(t, party, m2.l.res.Held())

	h.hub.Drop(host.ep)
	h.until(m1.l.IsHost, "m1 promoted")
	h.until(func() bool { return m1.l.res.ValidCount() == 2 }, "new host holds the party slots")
	h.tick(2)

	for _, c := range party {
		assert.True(t, m1.l.res.Holds(c), "conn %d", c)
	}
	assert.Len(t, m2.squad.Results(), 1, "replay is not reported to the squad")
	assert.False(t, m2.l.reservationReplay)
}

func TestHostDrop_RequesterPromotedKeepsReservations(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	m1 := h.add("m1", testConfig())
	sid := h.host(host)
	h.join(m1, sid)
	h.until(func() bool { return host.l.roster.Len() == 2 }, "host sees member")

	require.NoError(t, m1.l.MakeReservations([]model.ConnectionID{301}, false))
	h.until(func() bool { return len(m1.squad.Results()) == 1 }, "reservation answered")
	require.Equal(t, reservation.Success, m1.squad.Results()[0])

	h.hub.Drop(host.ep)
	h.until(m1.l.IsHost, "m1 promoted")
	h.tick(2)
	assert.True(t, m1.l.res.Holds(301))
	assert.Equal(t, 1, m1.l.res.ValidCount())
}
