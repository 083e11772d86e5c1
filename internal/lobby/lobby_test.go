// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/events"
	"github.com/ManuGH/lobbyd/internal/lobby/loopback"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
	"github.com/ManuGH/lobbyd/internal/lobby/reservation"
)

func TestHostedMatch_StartBroadcastPrecedesLevelLoad(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 3
	h := newHarness(t, loopback.Options{})
	host := h.add("host", cfg)
	m1 := h.add("m1", cfg)
	m2 := h.add("m2", cfg)

	var atLoad map[model.ConnectionID]int
	host.game.OnStartLevel = func() {
		atLoad = map[model.ConnectionID]int{
			m1.ep.Conn(): host.svc.count(m1.ep.Conn(), packet.TypeGameHasStarted),
			m2.ep.Conn(): host.svc.count(m2.ep.Conn(), packet.TypeGameHasStarted),
		}
	}

	sid := h.host(host)
	assert.Equal(t, model.ActiveStatusLobby, host.l.GetActiveStatus())
	h.join(m1, sid)
	h.join(m2, sid)
	assert.Equal(t, model.ActiveStatusLobby, m1.l.GetActiveStatus())
	h.until(func() bool { return host.l.roster.Len() == 3 }, "host sees both members")

	h.until(func() bool {
		return host.l.State() == model.StateGame && m1.l.State() == model.StateGame && m2.l.State() == model.StateGame
	}, "everyone in game")

	assert.Equal(t, map[model.ConnectionID]int{m1.ep.Conn(): 1, m2.ep.Conn(): 1}, atLoad)
	assert.Equal(t, []string{"safe_settings", "loading_hint:harbor", "start_level:harbor/assault"}, host.game.Calls())
	assert.Contains(t, m1.game.Calls(), "connect:")
	assert.NotContains(t, m1.game.Calls(), "start_level:harbor/assault")
	assert.Len(t, host.events.Topic(events.TopicMatch), 1)
	assert.Equal(t, model.ActiveStatusGame, host.l.GetActiveStatus())
}

func TestReservation_RequestOverPackets(t *testing.T) {
	cfg := testConfig()
	cfg.PublicSlots = 4
	h := newHarness(t, loopback.Options{})
	host := h.add("host", cfg)
	member := h.add("member", cfg)
	h.join(member, h.host(host))
	h.until(func() bool { return host.l.roster.Len() == 2 }, "host sees member")

	require.NoError(t, member.l.MakeReservations([]model.ConnectionID{101, 102, 103}, false))
	h.until(func() bool { return len(member.squad.Results()) == 1 }, "first reservation answered")
	assert.Equal(t, reservation.Fail, member.squad.Results()[0])

	require.NoError(t, member.l.MakeReservations([]model.ConnectionID{101}, true))
	h.until(func() bool { return len(member.squad.Results()) == 2 }, "second reservation answered")
	assert.Equal(t, reservation.Success, member.squad.Results()[1])
	assert.Equal(t, 1, host.l.res.ValidCount())
}

func TestMakeReservations_WithoutSession(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	p := h.add("solo", testConfig())
	assert.ErrorIs(t, p.l.MakeReservations([]model.ConnectionID{1}, false), model.ErrNoSession)
}

func TestPromote_DropsPlaceholders(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	member := h.add("member", testConfig())
	h.join(member, h.host(host))

	member.l.roster.Placeholder(77)
	require.Equal(t, 1, member.l.roster.Placeholders())

	sink{l: member.l}.OnPromoteToServer(member.l.handle)
	member.l.Update(testTick)

	assert.True(t, member.l.IsHost())
	_, ok := member.l.roster.Get(77)
	assert.False(t, ok)
	members := member.l.roster.Members()
	require.Len(t, members, 2)
	for _, m := range members {
		assert.True(t, m.FullyConnected, "conn %d", m.Conn)
		assert.False(t, m.Placeholder)
	}
}

func TestHostDrop_PromotesLowestMember(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	m1 := h.add("m1", testConfig())
	m2 := h.add("m2", testConfig())
	sid := h.host(host)
	h.join(m1, sid)
	h.join(m2, sid)

	h.hub.Drop(host.ep)

	h.until(m1.l.IsHost, "m1 promoted")
	h.until(func() bool { return m2.l.hostConn == m1.ep.Conn() }, "m2 follows new host")
	h.until(func() bool { return h.hub.Calls(loopback.OpMigrate) == 1 }, "new host migrates the session")
	assert.False(t, m2.l.IsHost())
	assert.Equal(t, model.StateLobby, m1.l.State())
	assert.Equal(t, sid, m1.l.Session())
	h.until(func() bool { return m1.l.roster.Len() == 2 }, "old host removed")
}

func TestMigration_VetoedOutsideMatch(t *testing.T) {
	h := newHarness(t, loopback.Options{CarryNetObjects: true})
	host := h.add("host", testConfig())
	member := h.add("member", testConfig())
	h.join(member, h.host(host))

	h.hub.Drop(host.ep)

	h.until(member.in(model.StateNone), "member backs out")
	assert.Contains(t, member.warnings.Names(), ports.WarnSessionClosed)
	assert.Empty(t, h.hub.Sessions())
}

func TestMigration_ContinuesDuringMatch(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 3
	h := newHarness(t, loopback.Options{CarryNetObjects: true})
	host := h.add("host", cfg)
	m1 := h.add("m1", cfg)
	m2 := h.add("m2", cfg)
	sid := h.host(host)
	h.join(m1, sid)
	h.join(m2, sid)
	h.until(func() bool { return m1.l.State() == model.StateGame && m2.l.State() == model.StateGame }, "match running")

	h.hub.Drop(host.ep)

	h.until(m1.l.IsHost, "m1 promoted")
	assert.Equal(t, model.StateGame, m1.l.State())
	h.until(func() bool { return m1.svc.count(m2.ep.Conn(), packet.TypeGameHasStarted) == 1 }, "new host re-announces the match")
	assert.Equal(t, model.StateGame, m2.l.State())
	assert.Empty(t, m2.warnings.Warned())
}

func TestLeaveSession_MemberReturnsToNone(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	member := h.add("member", testConfig())
	sid := h.host(host)
	h.join(member, sid)

	member.l.LeaveSession(false)

	h.until(member.in(model.StateNone), "member left")
	h.until(func() bool { return host.l.roster.Len() == 1 }, "host roster shrinks")
	assert.Equal(t, []model.ConnectionID{host.ep.Conn()}, h.hub.Members(sid))
	closed := member.events.Topic(events.TopicSession)
	require.Len(t, closed, 1)
	assert.Equal(t, "user", closed[0].(events.SessionClosed).Reason)
	assert.False(t, member.l.Session().Valid())
}

func TestLeaveSession_HostHandsOver(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	member := h.add("member", testConfig())
	h.join(member, h.host(host))
	h.until(func() bool { return host.l.roster.Len() == 2 }, "host sees member")

	host.l.LeaveSession(false)

	h.until(host.in(model.StateNone), "host left")
	h.until(member.l.IsHost, "member takes over")
	assert.Equal(t, 1, h.hub.Calls(loopback.OpTerminateHostHinting))
}

func TestLeaveSession_WatchdogForcesNone(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	h.host(host)

	h.hub.SetManual(true)
	host.l.LeaveSession(false)
	h.tick(5)
	assert.Equal(t, model.StateLeaving, host.l.State())
	assert.Contains(t, h.hub.Pending(), loopback.OpDelete)

	h.until(host.in(model.StateNone), "watchdog fires")
	closed := host.events.Topic(events.TopicSession)
	require.Len(t, closed, 1)
	assert.Equal(t, "timeout", closed[0].(events.SessionClosed).Reason)
}

func TestLeaveSession_NoSessionIsNoop(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	p := h.add("solo", testConfig())
	p.l.LeaveSession(true)
	h.tick(1)
	assert.Equal(t, model.StateNone, p.l.State())
	assert.Empty(t, p.events.Topic(events.TopicSession))
}

func TestPreGame_MissingContentLeaves(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	h.host(host)
	host.content.SetMissing(true)

	require.NoError(t, host.l.StartMatch())
	h.until(host.in(model.StateNone), "host backs out")

	assert.Contains(t, host.warnings.Names(), ports.WarnContentMissing)
	assert.Empty(t, host.game.Calls())
}

func TestStartMatch_RankRestricted(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig(), func(d *Deps) { d.Rank = RankRange{Min: 5, Max: 10} })
	h.host(host)
	host.l.SetLocalProfile(Profile{Rank: 1})

	err := host.l.StartMatch()
	require.ErrorIs(t, err, model.ErrRankRestricted)
	h.until(host.in(model.StateNone), "host backs out")
	assert.Equal(t, []string{"rank_restricted:1"}, host.warnings.Warned())
}

func TestStartMatch_RequiresHost(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	member := h.add("member", testConfig())
	h.join(member, h.host(host))

	assert.ErrorIs(t, member.l.StartMatch(), model.ErrNotHost)
	assert.ErrorIs(t, member.l.EndMatch(), model.ErrNotHost)
	assert.ErrorIs(t, member.l.MergeInto("elsewhere"), model.ErrNotHost)
}

func TestJoinSession_Failures(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		h := newHarness(t, loopback.Options{})
		p := h.add("member", testConfig())
		require.NoError(t, p.l.JoinSession("missing"))
		h.tick(1)
		h.until(p.in(model.StateNone), "join fails")
		assert.Equal(t, []string{ports.WarnSessionNotFound}, p.warnings.Names())
	})

	t.Run("full", func(t *testing.T) {
		cfg := testConfig()
		cfg.PublicSlots = 1
		h := newHarness(t, loopback.Options{})
		host := h.add("host", cfg)
		p := h.add("member", cfg)
		p.squad.SetMember(true)
		sid := h.host(host)

		require.NoError(t, p.l.JoinSession(sid))
		h.tick(1)
		h.until(p.in(model.StateNone), "join fails")
		assert.Equal(t, []string{ports.WarnSessionFull}, p.warnings.Names())
		assert.Equal(t, 1, p.squad.Left())
	})

	t.Run("password", func(t *testing.T) {
		h := newHarness(t, loopback.Options{})
		host := h.add("host", testConfig())
		p := h.add("member", testConfig())
		sid := h.host(host)
		h.hub.SetPassword(sid, "secret")

		require.NoError(t, p.l.JoinSession(sid))
		h.tick(1)
		h.until(p.in(model.StateNone), "join fails")
		assert.Equal(t, []model.SessionID{sid}, p.warnings.Prompts())
		assert.Empty(t, p.warnings.Warned())

		require.NoError(t, p.l.JoinSessionWithPassword(sid, "secret"))
		h.until(p.in(model.StateLobby), "join with password")
	})
}

func TestJoinSession_Rejections(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	sid := h.host(host)

	assert.ErrorIs(t, host.l.JoinSession(sid), model.ErrSessionActive)
	assert.ErrorIs(t, host.l.FindGame(CreateRequest{}), model.ErrSessionActive)
	assert.ErrorIs(t, host.l.JoinSession(""), model.ErrNoSession)
}

func TestCreate_FailureReporting(t *testing.T) {
	tests := []struct {
		name        string
		role        model.Role
		matchmaking bool
		err         error
		warnings    []string
		fatal       int
	}{
		{name: "hard error", role: model.RoleInteractive, err: model.ErrInternal, warnings: []string{"join_failed:create"}},
		{name: "silent matchmaking", role: model.RoleInteractive, matchmaking: true, err: model.ErrInternal},
		{name: "sign in prompt", role: model.RoleInteractive, err: model.ErrCableNotConnected, warnings: []string{"sign_in_required:create"}},
		{name: "dedicated sign in is fatal", role: model.RoleDedicated, err: model.ErrUserNotSignedIn, fatal: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Role = tc.role
			h := newHarness(t, loopback.Options{})
			p := h.add("host", cfg)
			h.hub.Fail(loopback.OpCreate, tc.err)

			require.NoError(t, p.l.FindGame(CreateRequest{Matchmaking: tc.matchmaking}))
			h.tick(1)
			h.until(p.in(model.StateNone), "create fails")

			if tc.warnings == nil {
				assert.Empty(t, p.warnings.Warned())
			} else {
				assert.Equal(t, tc.warnings, p.warnings.Warned())
			}
			assert.Len(t, p.fatal, tc.fatal)
		})
	}
}

func TestCreate_RestartsOnTimeout(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	p := h.add("host", testConfig())
	h.hub.Fail(loopback.OpCreate, model.ErrTimeout, model.ErrTimeout)

	h.host(p)
	assert.Equal(t, 3, h.hub.Calls(loopback.OpCreate))
	assert.Empty(t, p.warnings.Warned())
}

func TestMerge_MovesMembersThenHost(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	a := h.add("a", testConfig())
	member := h.add("member", testConfig())
	b := h.add("b", testConfig())
	sidA := h.host(a)
	h.join(member, sidA)
	sidB := h.host(b)

	require.NoError(t, a.l.MergeInto(sidB))

	h.until(func() bool { return member.l.Session() == sidB && member.l.State() == model.StateLobby }, "member moved")
	h.until(func() bool { return a.l.Session() == sidB && a.l.State() == model.StateLobby }, "host moved")
	assert.False(t, a.l.IsHost())
	h.until(func() bool { return b.l.roster.Len() == 3 }, "target host sees both")
	assert.Equal(t, []model.SessionID{sidB}, h.hub.Sessions())
}

func TestMerge_CrossingIntentConcedesLowerSession(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	a := h.add("a", testConfig())
	b := h.add("b", testConfig())
	sidA := h.host(a)
	sidB := h.host(b)

	require.NoError(t, a.l.MergeInto(sidB))
	require.NoError(t, b.l.MergeInto(sidA))

	lower, higher := a, b
	if sidB < sidA {
		lower, higher = b, a
	}
	assert.False(t, higher.l.OnRemoteMergeIntent(lower.l.Session()))
	assert.True(t, lower.l.OnRemoteMergeIntent(higher.l.Session()))
	assert.False(t, lower.l.move.active)
	assert.True(t, higher.l.move.active)
}

func TestMerge_AnnouncedMoveIsNotConceded(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	a := h.add("a", testConfig())
	b := h.add("b", testConfig())
	sidA := h.host(a)
	sidB := h.host(b)

	lower, higherSID := a, sidB
	if sidB < sidA {
		lower, higherSID = b, sidA
	}
	require.NoError(t, lower.l.MergeInto(higherSID))
	lower.l.move.announced = true

	assert.False(t, lower.l.OnRemoteMergeIntent(higherSID))
	assert.True(t, lower.l.move.active)
	assert.Equal(t, higherSID, lower.l.move.target)
}

func TestMerge_Rejections(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	sid := h.host(host)

	assert.ErrorIs(t, host.l.MergeInto(sid), model.ErrMergeConflict)
	require.NoError(t, host.l.MergeInto("other"))
	assert.ErrorIs(t, host.l.MergeInto("third"), model.ErrMergeConflict)
}

func TestVoting_ElectsNextMap(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 3
	cfg.Voting.Enabled = true
	h := newHarness(t, loopback.Options{})
	host := h.add("host", cfg)
	m1 := h.add("m1", cfg)
	m2 := h.add("m2", cfg)
	sid := h.host(host)
	_, right := host.l.votes.Candidates()
	h.join(m1, sid)
	h.join(m2, sid)

	require.NoError(t, m1.l.SetLocalVote(model.VoteRight))
	require.NoError(t, m2.l.SetLocalVote(model.VoteRight))

	h.until(func() bool { return host.l.State() == model.StateGame }, "match starts")
	assert.Equal(t, right.Map, host.l.match.Map)
	assert.Equal(t, right.Mode, host.l.match.Mode)
	assert.Len(t, host.events.Topic(events.TopicRotation), 1)
	h.until(m1.in(model.StateGame), "member follows")
	assert.Equal(t, right.Map, m1.l.match.Map)
}

func TestSetLocalVote_Rejections(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	p := h.add("host", testConfig())
	assert.ErrorIs(t, p.l.SetLocalVote(model.VoteLeft), ErrVotingDisabled)
	assert.ErrorIs(t, p.l.CloseVoting(), ErrVotingDisabled)
}

func TestEndMatch_ReturnsEveryoneToLobby(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 3
	h := newHarness(t, loopback.Options{})
	host := h.add("host", cfg)
	m1 := h.add("m1", cfg)
	m2 := h.add("m2", cfg)
	sid := h.host(host)
	h.join(m1, sid)
	h.join(m2, sid)
	h.until(func() bool {
		return host.l.State() == model.StateGame && m1.l.State() == model.StateGame && m2.l.State() == model.StateGame
	}, "match running")

	require.NoError(t, host.l.EndMatch())
	h.until(func() bool {
		return host.l.State() == model.StateLobby && m1.l.State() == model.StateLobby && m2.l.State() == model.StateLobby
	}, "back in lobby")

	ended := host.events.Topic(events.TopicMatch)
	require.Len(t, ended, 2)
	assert.IsType(t, events.MatchEnded{}, ended[1])
	assert.Len(t, host.events.Topic(events.TopicRotation), 1)
	assert.Equal(t, 3, h.hub.Calls(loopback.OpEnd))
}

func TestHandlers_MatchWireRoles(t *testing.T) {
	for typ := packet.TypeCountdownSync; typ <= packet.TypeDedicatedServerInfo; typ++ {
		h, ok := handlers[typ]
		require.True(t, ok, "no handler for %s", typ)
		assert.Equal(t, packet.HandledBy(typ), h.role, typ.String())
	}
}

func TestDispatch_RejectsMemberPacketsFromNonHost(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	member := h.add("member", testConfig())
	h.join(member, h.host(host))

	b, err := packet.Encode(&packet.MoveSession{Target: "elsewhere"})
	require.NoError(t, err)
	member.l.dispatch(model.ConnectionID(999), b)
	assert.False(t, member.l.rejoinTarget.Valid())
	assert.Equal(t, model.StateLobby, member.l.requested)
}

func TestDispatch_RateLimitsPerConnection(t *testing.T) {
	cfg := testConfig()
	cfg.PacketRate = 1
	cfg.PacketBurst = 1
	h := newHarness(t, loopback.Options{})
	host := h.add("host", cfg)
	member := h.add("member", cfg)
	h.join(member, h.host(host))
	h.tick(20)

	hostConn := host.ep.Conn()
	first, err := packet.Encode(&packet.DedicatedServerInfo{Address: "first"})
	require.NoError(t, err)
	second, err := packet.Encode(&packet.DedicatedServerInfo{Address: "second"})
	require.NoError(t, err)

	member.l.dispatch(hostConn, first)
	member.l.dispatch(hostConn, second)
	assert.Equal(t, "first", member.l.dedicatedAddr)
}

func TestBestHost_EarliestDeadlineWins(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	b := newBestHost()
	b.reset(now, time.Minute)
	b.deadlines[cooldownJoin] = now.Add(10 * time.Second)
	b.deadlines[cooldownStart] = now.Add(20 * time.Second)

	_, ok := b.due(now.Add(5 * time.Second))
	assert.False(t, ok)
	name, ok := b.due(now.Add(10 * time.Second))
	require.True(t, ok)
	assert.Equal(t, cooldownJoin, name)

	b.fired(now.Add(10*time.Second), time.Minute)
	_, ok = b.due(now.Add(30 * time.Second))
	assert.False(t, ok, "fired clears armed cooldowns")
	name, ok = b.due(now.Add(70 * time.Second))
	require.True(t, ok)
	assert.Equal(t, cooldownInterval, name)

	b.reset(now, 5*time.Second)
	b.deadlines[cooldownMigration] = now.Add(20 * time.Second)
	name, ok = b.due(now.Add(5 * time.Second))
	require.True(t, ok)
	assert.Equal(t, cooldownInterval, name)

	b.reset(now, 0)
	_, ok = b.due(now.Add(time.Hour))
	assert.False(t, ok)
}

func TestBestHost_ScheduledForMatchmakingHost(t *testing.T) {
	cfg := testConfig()
	cfg.BestHost = BestHostConfig{Enabled: true, Interval: time.Hour, AfterJoin: time.Second}
	h := newHarness(t, loopback.Options{})
	host := h.add("host", cfg)
	require.NoError(t, host.l.FindGame(CreateRequest{Map: "harbor", Mode: "assault", Matchmaking: true}))
	h.until(host.in(model.StateLobby), "host reaches lobby")

	h.until(func() bool { return h.hub.Calls(loopback.OpEnsureBestHost) == 1 }, "best-host check after join cooldown")
	h.tick(30)
	assert.Equal(t, 1, h.hub.Calls(loopback.OpEnsureBestHost))
}

func TestSnapshot_ReflectsLobby(t *testing.T) {
	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig())
	assert.Equal(t, model.StateNone, host.l.Snapshot().State)

	sid := h.host(host)
	h.tick(1)
	st := host.l.Snapshot()
	assert.Equal(t, model.StateLobby, st.State)
	assert.Equal(t, "lobby", st.Active)
	assert.True(t, st.Host)
	assert.Equal(t, sid, st.Session)
	assert.Equal(t, 8, st.Capacity)
	assert.Equal(t, "harbor", st.Map)
	require.Len(t, st.Members, 1)

	b, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"state":"LOBBY"`)
}

func TestTaskSpans_Recorded(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := newHarness(t, loopback.Options{})
	host := h.add("host", testConfig(), func(d *Deps) { d.Tracer = tp.Tracer("lobby-test") })
	h.host(host)
	h.tick(2)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "lobby.task/create")
	assert.Contains(t, names, "lobby.task/set_local_user_data")
}

func TestRun_ServesDoUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	nop := xglog.Nop()
	hub := loopback.NewHub(loopback.Options{Logger: &nop})
	cfg := testConfig()
	cfg.TickInterval = 10 * time.Millisecond
	l, err := New(cfg, Deps{Service: hub.Endpoint("solo"), Logger: &nop})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	var findErr error
	require.NoError(t, l.Do(ctx, func(l *Lobby) { findErr = l.FindGame(CreateRequest{Map: "harbor"}) }))
	require.NoError(t, findErr)
	require.Eventually(t, func() bool { return l.Snapshot().State == model.StateLobby }, 2*time.Second, 5*time.Millisecond)

	require.Error(t, l.Run(ctx), "second Run must be rejected")

	cancel()
	require.NoError(t, <-errCh)
	assert.ErrorIs(t, l.Do(context.Background(), func(*Lobby) {}), ErrStopped)
}

func TestNew_RequiresService(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	require.Error(t, err)
}

func TestApplyTuning_KeepsLiveSessionShape(t *testing.T) {
	cfg := testConfig()
	cfg.PublicSlots = 2
	h := newHarness(t, loopback.Options{})
	host := h.add("host", cfg)
	member := h.add("member", cfg)
	h.join(member, h.host(host))
	h.until(func() bool { return host.l.roster.Len() == 2 }, "host sees member")

	wider := cfg
	wider.PublicSlots = 16
	wider.ReservationTimeout = 9 * time.Second
	host.l.ApplyTuning(wider)
	assert.Equal(t, 2, host.l.cfg.Capacity())
	assert.Equal(t, 9*time.Second, host.l.cfg.ReservationTimeout)

	require.NoError(t, member.l.MakeReservations([]model.ConnectionID{201, 202, 203, 204}, false))
	h.until(func() bool { return len(member.squad.Results()) == 1 }, "reservation answered")
	assert.Equal(t, reservation.Fail, member.squad.Results()[0])
	assert.Equal(t, 0, host.l.res.ValidCount())

	host.l.LeaveSession(false)
	h.until(host.in(model.StateNone), "host leaves")
	host.l.ApplyTuning(wider)
	assert.Equal(t, 16, host.l.cfg.Capacity())
}

func TestVoteCandidates_CursorFitsWire(t *testing.T) {
	cfg := testConfig()
	cfg.Voting.Enabled = true
	h := newHarness(t, loopback.Options{})
	host := h.add("host", cfg)
	member := h.add("member", cfg)
	host.l.SetRotationCursor(70_001)
	h.join(member, h.host(host))

	wire := int(host.l.votes.WireCursor())
	require.Less(t, wire, host.l.deps.Rotation.Len())
	h.until(func() bool { return member.l.votes.Cursor() == wire }, "member adopts host cursor")

	hl, hr := host.l.votes.Candidates()
	ml, mr := member.l.votes.Candidates()
	assert.Equal(t, hl, ml)
	assert.Equal(t, hr, mr)

	member.l.votes.InvalidateCandidates()
	ml, mr = member.l.votes.Candidates()
	assert.Equal(t, hl, ml, "local rotation agrees with the reduced cursor")
	assert.Equal(t, hr, mr)
}
