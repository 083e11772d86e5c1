// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package roster

import (
	"testing"
	"time"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newRoster() (*Roster, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return New(5*time.Second, clk.Now), clk
}

func TestJoin_DuplicateUpdatesInPlace(t *testing.T) {
	r, _ := newRoster()
	_, added := r.Join(model.MemberInfo{Conn: 7, Name: "ann"}, model.MemberData{Team: 1})
	require.True(t, added)
	m, added := r.Join(model.MemberInfo{Conn: 7, Name: "ann2"}, model.MemberData{Team: 2})
	assert.False(t, added)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "ann2", m.Name)
	assert.Equal(t, uint8(2), m.Data.Team)
}

func TestPlaceholder_ResolvedByJoin(t *testing.T) {
	r, _ := newRoster()
	p := r.Placeholder(9)
	assert.True(t, p.Placeholder)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, r.Placeholders())
	assert.Same(t, p, r.Placeholder(9))

	m, added := r.Join(model.MemberInfo{Conn: 9, Name: "bo"}, model.MemberData{})
	assert.True(t, added)
	assert.Same(t, p, m)
	assert.False(t, m.Placeholder)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, r.Placeholders())
}

func TestTick_ExpiresPlaceholdersOnly(t *testing.T) {
	r, clk := newRoster()
	r.Placeholder(1)
	r.Join(model.MemberInfo{Conn: 2}, model.MemberData{})
	clk.t = clk.t.Add(4 * time.Second)
	assert.Empty(t, r.Tick())
	clk.t = clk.t.Add(time.Second)
	assert.Equal(t, []model.ConnectionID{1}, r.Tick())
	_, ok := r.Get(2)
	assert.True(t, ok)
}

func TestPromote_DropsUnresolved(t *testing.T) {
	r, _ := newRoster()
	r.Placeholder(3)
	r.Join(model.MemberInfo{Conn: 4}, model.MemberData{})
	dropped := r.Promote()
	assert.Equal(t, []model.ConnectionID{3}, dropped)
	members := r.Members()
	require.Len(t, members, 1)
	assert.Equal(t, model.ConnectionID(4), members[0].Conn)
	assert.True(t, members[0].FullyConnected)
}

func TestLeave(t *testing.T) {
	r, _ := newRoster()
	r.Join(model.MemberInfo{Conn: 1}, model.MemberData{})
	r.Join(model.MemberInfo{Conn: 2}, model.MemberData{})
	r.Join(model.MemberInfo{Conn: 3}, model.MemberData{})
	m, ok := r.Leave(2)
	require.True(t, ok)
	assert.Equal(t, model.ConnectionID(2), m.Conn)
	_, ok = r.Leave(2)
	assert.False(t, ok)
	got := r.Members()
	require.Len(t, got, 2)
	assert.Equal(t, model.ConnectionID(1), got[0].Conn)
	assert.Equal(t, model.ConnectionID(3), got[1].Conn)
}

func TestVotesAndSkill(t *testing.T) {
	r, _ := newRoster()
	r.Join(model.MemberInfo{Conn: 1}, model.MemberData{Vote: model.VoteLeft, Skill: 100})
	r.Join(model.MemberInfo{Conn: 2}, model.MemberData{Vote: model.VoteRight, Skill: 300})
	r.Placeholder(3).Data.Vote = model.VoteLeft
	assert.Equal(t, []model.VoteChoice{model.VoteLeft, model.VoteRight}, r.Votes())
	assert.Equal(t, uint32(200), r.AverageSkill())
	r.ResetVotes()
	assert.Equal(t, []model.VoteChoice{model.VoteNone, model.VoteNone}, r.Votes())
}

func TestMustLeaveBeforeHost(t *testing.T) {
	r, _ := newRoster()
	r.Join(model.MemberInfo{Conn: 1, IsHost: true}, model.MemberData{})
	r.Join(model.MemberInfo{Conn: 2}, model.MemberData{})
	r.Join(model.MemberInfo{Conn: 3}, model.MemberData{})
	assert.Equal(t, 2, r.MarkMustLeaveBeforeHost(1))
	assert.Equal(t, 2, r.RemoteCount(1))
	r.Leave(2)
	assert.Equal(t, 1, r.PendingMustLeave())
	r.Leave(3)
	assert.Equal(t, 0, r.PendingMustLeave())
}
