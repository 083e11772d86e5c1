// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package lobbytest provides recording collaborators for lobby tests.
package lobbytest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
	"github.com/ManuGH/lobbyd/internal/lobby/reservation"
	"github.com/ManuGH/lobbyd/internal/lobby/vote"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Content reports content as present unless Missing is set.
type Content struct {
	mu      sync.Mutex
	Missing bool
}

func (c *Content) SetMissing(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Missing = v
}

func (c *Content) HasContent(uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.Missing
}

// Balancer tracks the players it was told about.
type Balancer struct {
	mu         sync.Mutex
	players    map[model.ConnectionID]model.MemberData
	unbalanced bool
}

func NewBalancer() *Balancer {
	return &Balancer{players: make(map[model.ConnectionID]model.MemberData)}
}

func (b *Balancer) SetBalanced(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unbalanced = !v
}

func (b *Balancer) OnPlayerAdded(conn model.ConnectionID, d model.MemberData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.players[conn] = d
}

func (b *Balancer) OnPlayerRemoved(conn model.ConnectionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.players, conn)
}

func (b *Balancer) OnPlayerUpdated(conn model.ConnectionID, d model.MemberData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.players[conn] = d
}

func (b *Balancer) TeamOf(conn model.ConnectionID) uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.players[conn].Team
}

func (b *Balancer) Balanced() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.unbalanced
}

func (b *Balancer) Players() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.players)
}

// Warnings records presented warnings as "name:param".
type Warnings struct {
	mu      sync.Mutex
	warned  []string
	prompts []model.SessionID
}

func (w *Warnings) Warn(name, param string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.warned = append(w.warned, name+":"+param)
}

func (w *Warnings) PromptPassword(target model.SessionID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prompts = append(w.prompts, target)
}

func (w *Warnings) Warned() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.warned...)
}

// Names returns the warning names without parameters.
func (w *Warnings) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.warned))
	for _, s := range w.warned {
		name, _, _ := strings.Cut(s, ":")
		out = append(out, name)
	}
	return out
}

func (w *Warnings) Prompts() []model.SessionID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.SessionID(nil), w.prompts...)
}

// Game logs every call in order.
type Game struct {
	mu           sync.Mutex
	calls        []string
	StartErr     error
	ConnectErr   error
	// OnStartLevel runs inside StartLevel, before it is logged.
	OnStartLevel func()
}

func (g *Game) record(s string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, s)
}

func (g *Game) ApplySafeSettings()      { g.record("safe_settings") }
func (g *Game) ArmLoadingHint(m string) { g.record("loading_hint:" + m) }

func (g *Game) Connect(addr string) error {
	g.record("connect:" + addr)
	return g.ConnectErr
}

func (g *Game) StartLevel(m, mode string) error {
	if g.OnStartLevel != nil {
		g.OnStartLevel()
	}
	g.record(fmt.Sprintf("start_level:%s/%s", m, mode))
	return g.StartErr
}

func (g *Game) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Squad records reservation results.
type Squad struct {
	mu      sync.Mutex
	member  bool
	results []reservation.Result
	left    int
}

func (s *Squad) SetMember(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.member = v
}

func (s *Squad) OnReservationResult(r reservation.Result, _ bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *Squad) IsMember() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.member
}

func (s *Squad) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left++
	s.member = false
}

func (s *Squad) Results() []reservation.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reservation.Result(nil), s.results...)
}

func (s *Squad) Left() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left
}

// Rotation is a fixed candidate list.
type Rotation []vote.Candidate

func (r Rotation) Len() int                { return len(r) }
func (r Rotation) At(i int) vote.Candidate { return r[i] }

// DefaultRotation has four distinct entries.
func DefaultRotation() Rotation {
	return Rotation{
		{Map: "harbor", Mode: "assault"},
		{Map: "quarry", Mode: "domination"},
		{Map: "summit", Mode: "assault"},
		{Map: "delta", Mode: "ctf"},
	}
}

// Event is one published lobby event.
type Event struct {
	Topic string
	Msg   any
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *Publisher) TryPublish(topic string, msg any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{Topic: topic, Msg: msg})
	return true
}

func (p *Publisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Topic returns the messages published on topic.
func (p *Publisher) Topic(topic string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []any
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e.Msg)
		}
	}
	return out
}

var (
	_ ports.ContentChecker = (*Content)(nil)
	_ ports.TeamBalancer   = (*Balancer)(nil)
	_ ports.Warnings       = (*Warnings)(nil)
	_ ports.GameHost       = (*Game)(nil)
	_ ports.Squad          = (*Squad)(nil)
	_ ports.Rotation       = Rotation(nil)
	_ ports.Publisher      = (*Publisher)(nil)
)
