// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/lobbytest"
	"github.com/ManuGH/lobbyd/internal/lobby/loopback"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
)

const testTick = 100 * time.Millisecond

func testConfig() Config {
	return Config{
		Role:                model.RoleInteractive,
		PublicSlots:         8,
		MinPlayers:          4,
		InitialCountdown:    3 * time.Second,
		SubsequentCountdown: 2 * time.Second,
		ReservationTimeout:  5 * time.Second,
		PlaceholderTimeout:  3 * time.Second,
		LeaveTimeout:        10 * time.Second,
		MoveTimeout:         5 * time.Second,
		TickInterval:        testTick,
		RotationKey:         "default",
		Voting:              VotingConfig{CloseLead: time.Second},
	}
}

// recordingService counts the packet types sent to each connection.
type recordingService struct {
	*loopback.Endpoint

	mu   sync.Mutex
	sent map[model.ConnectionID][]packet.Type
}

func (r *recordingService) SendTo(h model.SessionHandle, to model.ConnectionID, b []byte) error {
	if t, err := packet.PeekType(b); err == nil {
		r.mu.Lock()
		r.sent[to] = append(r.sent[to], t)
		r.mu.Unlock()
	}
	return r.Endpoint.SendTo(h, to, b)
}

func (r *recordingService) count(to model.ConnectionID, t packet.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent[to] {
		if s == t {
			n++
		}
	}
	return n
}

type peer struct {
	l        *Lobby
	ep       *loopback.Endpoint
	svc      *recordingService
	game     *lobbytest.Game
	warnings *lobbytest.Warnings
	events   *lobbytest.Publisher
	squad    *lobbytest.Squad
	content  *lobbytest.Content
	balancer *lobbytest.Balancer
	fatal    []error
}

type harness struct {
	t     *testing.T
	clock *lobbytest.Clock
	hub   *loopback.Hub
	peers []*peer
}

func newHarness(t *testing.T, opts loopback.Options) *harness {
	t.Helper()
	nop := xglog.Nop()
	opts.Logger = &nop
	return &harness{t: t, clock: lobbytest.NewClock(), hub: loopback.NewHub(opts)}
}

func (h *harness) add(name string, cfg Config, mutate ...func(*Deps)) *peer {
	h.t.Helper()
	ep := h.hub.Endpoint(name)
	p := &peer{
		ep:       ep,
		svc:      &recordingService{Endpoint: ep, sent: make(map[model.ConnectionID][]packet.Type)},
		game:     &lobbytest.Game{},
		warnings: &lobbytest.Warnings{},
		events:   &lobbytest.Publisher{},
		squad:    &lobbytest.Squad{},
		content:  &lobbytest.Content{},
		balancer: lobbytest.NewBalancer(),
	}
	nop := xglog.Nop()
	deps := Deps{
		Service:     p.svc,
		Content:     p.content,
		Balancer:    p.balancer,
		Warnings:    p.warnings,
		Game:        p.game,
		Rotation:    lobbytest.DefaultRotation(),
		Squad:       p.squad,
		Events:      p.events,
		Provisioner: &loopback.Provisioner{Address: "10.0.0.7:3074"},
		Clock:       h.clock.Now,
		Rand:        rand.New(rand.NewPCG(1, 2)),
		Logger:      &nop,
		Fatal:       func(err error) { p.fatal = append(p.fatal, err) },
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	l, err := New(cfg, deps)
	require.NoError(h.t, err)
	p.l = l
	h.peers = append(h.peers, p)
	return p
}

// tick advances the clock and updates every lobby n times.
func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(testTick)
		for _, p := range h.peers {
			p.l.Update(testTick)
		}
	}
}

// until ticks until cond holds, failing after a bounded number of ticks.
func (h *harness) until(cond func() bool, msg string) {
	h.t.Helper()
	for i := 0; i < 600; i++ {
		if cond() {
			return
		}
		h.tick(1)
	}
	require.FailNow(h.t, "condition not reached", msg)
}

func (p *peer) in(s model.State) func() bool {
	return func() bool { return p.l.State() == s }
}

// host creates a session and waits for its lobby.
func (h *harness) host(p *peer) model.SessionID {
	h.t.Helper()
	require.NoError(h.t, p.l.FindGame(CreateRequest{Map: "harbor", Mode: "assault"}))
	h.until(p.in(model.StateLobby), "host reaches lobby")
	return p.l.Session()
}

// join makes p join target and waits for its lobby.
func (h *harness) join(p *peer, target model.SessionID) {
	h.t.Helper()
	require.NoError(h.t, p.l.JoinSession(target))
	h.until(p.in(model.StateLobby), "member reaches lobby")
}
