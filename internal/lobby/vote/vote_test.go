// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vote

import (
	"math/rand/v2"
	"testing"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRotation []Candidate

func (l listRotation) Len() int           { return len(l) }
func (l listRotation) At(i int) Candidate { return l[i] }

var rot = listRotation{
	{Map: "m0", Mode: "tdm"},
	{Map: "m1", Mode: "ctf"},
	{Map: "m2", Mode: "tdm"},
	{Map: "m3", Mode: "dom"},
	{Map: "m4", Mode: "ctf"},
}

func votes(l, r, none int) []model.VoteChoice {
	var out []model.VoteChoice
	for i := 0; i < l; i++ {
		out = append(out, model.VoteLeft)
	}
	for i := 0; i < r; i++ {
		out = append(out, model.VoteRight)
	}
	for i := 0; i < none; i++ {
		out = append(out, model.VoteNone)
	}
	return out
}

func TestHigherCountAlwaysWins(t *testing.T) {
	for l := 0; l <= 6; l++ {
		for r := 0; r <= 6; r++ {
			if l == r {
				continue
			}
			p := New(rot, rand.New(rand.NewPCG(1, 2)))
			// Give the other side an early lead so leader history cannot decide.
			if l > r {
				p.Tally(votes(0, 6, 0))
			} else {
				p.Tally(votes(6, 0, 0))
			}
			p.Tally(votes(l, r, 2))
			res := p.Close()
			want := model.VoteLeft
			if r > l {
				want = model.VoteRight
			}
			require.Equal(t, want, res.Winner, "l=%d r=%d", l, r)
			require.Equal(t, ReasonCount, res.Reason)
		}
	}
}

func TestTie_HistoricalLeaderWins(t *testing.T) {
	p := New(rot, nil)
	p.Tally(votes(0, 1, 0)) // right leads 1
	p.Tally(votes(2, 1, 0)) // left leads 2
	p.Tally(votes(2, 2, 0)) // right reaches 2 second
	res := p.Close()
	assert.Equal(t, model.VoteLeft, res.Winner)
	assert.Equal(t, ReasonLeader, res.Reason)
	leader, highest := p.Leader()
	assert.Equal(t, model.VoteLeft, leader)
	assert.Equal(t, 2, highest)
}

// 3-3 where nobody ever led is decided at random.
func TestTie_NoLeaderIsRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1337))
	wins := map[model.VoteChoice]int{}
	const trials = 2000
	for i := 0; i < trials; i++ {
		p := New(rot, rng)
		p.Tally(votes(3, 3, 0))
		_, highest := p.Leader()
		require.Equal(t, 0, highest)
		res := p.Close()
		require.Equal(t, ReasonRandom, res.Reason)
		wins[res.Winner]++
	}
	assert.InDelta(t, trials/2, wins[model.VoteLeft], trials*0.1)
	assert.InDelta(t, trials/2, wins[model.VoteRight], trials*0.1)
}

func TestTally_RecomputedFromRoster(t *testing.T) {
	p := New(rot, nil)
	l, r := p.Tally(votes(2, 1, 3))
	assert.Equal(t, 2, l)
	assert.Equal(t, 1, r)
	// A member leaving is reflected immediately.
	l, r = p.Tally(votes(1, 1, 3))
	assert.Equal(t, 1, l)
	assert.Equal(t, 1, r)
}

func TestClose_IsSticky(t *testing.T) {
	p := New(rot, nil)
	p.Tally(votes(2, 0, 0))
	first := p.Close()
	p.Tally(votes(0, 5, 0))
	assert.Equal(t, first, p.Close())
}

func TestResolve_CursorAgreesForBothWinners(t *testing.T) {
	for _, leftWins := range []bool{true, false} {
		host := New(rot, nil)
		member := New(rot, nil)
		l, r := host.Candidates()
		assert.Equal(t, rot[1], l)
		assert.Equal(t, rot[2], r)

		if leftWins {
			host.Tally(votes(2, 0, 0))
		} else {
			host.Tally(votes(0, 2, 0))
		}
		res := host.Close()
		member.SetRemoteCandidates(host.Cursor(), l, r)
		member.ApplyRemoteClose(res.Winner == model.VoteLeft)

		hw, ok := host.Resolve()
		require.True(t, ok)
		mw, ok := member.Resolve()
		require.True(t, ok)
		assert.Equal(t, hw, mw)
		assert.Equal(t, host.Cursor(), member.Cursor())
		assert.Equal(t, 2, host.Cursor())
		if leftWins {
			assert.Equal(t, rot[1], hw)
		} else {
			assert.Equal(t, rot[2], hw)
		}
		assert.False(t, host.Closed())
		nl, nr := host.Candidates()
		assert.Equal(t, rot[3], nl)
		assert.Equal(t, rot[4], nr)
	}
}

func TestCandidates_Wrap(t *testing.T) {
	p := New(rot, nil)
	p.SetCursor(4)
	l, r := p.Candidates()
	assert.Equal(t, rot[0], l)
	assert.Equal(t, rot[1], r)
	assert.Equal(t, rot[0], p.Advance())
}

func TestResolve_RequiresClose(t *testing.T) {
	p := New(rot, nil)
	_, ok := p.Resolve()
	assert.False(t, ok)
	assert.Equal(t, 0, p.Cursor())
}

func TestInvalidateCandidates(t *testing.T) {
	p := New(rot, nil)
	p.SetRemoteCandidates(0, Candidate{Map: "x"}, Candidate{Map: "y"})
	l, _ := p.Candidates()
	assert.Equal(t, "x", l.Map)
	p.InvalidateCandidates()
	l, _ = p.Candidates()
	assert.Equal(t, rot[1], l)
}

func TestWireCursor_ReducedToRotation(t *testing.T) {
	p := New(rot, nil)
	p.SetCursor(70_003)
	require.Equal(t, uint16(70_003%len(rot)), p.WireCursor())

	member := New(rot, nil)
	member.SetCursor(int(p.WireCursor()))
	hl, hr := p.Candidates()
	ml, mr := member.Candidates()
	assert.Equal(t, hl, ml)
	assert.Equal(t, hr, mr)
	assert.Equal(t, p.Current(), member.Current())

	p.SetCursor(-1)
	assert.Equal(t, uint16(len(rot)-1), p.WireCursor())
	assert.Equal(t, uint16(0), New(nil, nil).WireCursor())
}
