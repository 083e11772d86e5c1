// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package lobby drives the session lifecycle of one multiplayer lobby: it
// owns the roster, the task queue, reservations, voting and the countdown,
// and reacts to host migration.
//
// A Lobby is an actor. All state is mutated by the goroutine calling Update
// (normally Run). Service callbacks and sink events are posted to an inbox
// and applied at the start of the next tick.
package lobby

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/lifecycle"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
	"github.com/ManuGH/lobbyd/internal/lobby/reservation"
	"github.com/ManuGH/lobbyd/internal/lobby/roster"
	"github.com/ManuGH/lobbyd/internal/lobby/taskqueue"
	"github.com/ManuGH/lobbyd/internal/lobby/vote"
	"github.com/ManuGH/lobbyd/internal/telemetry"
)

const (
	defaultTickInterval = 50 * time.Millisecond
	// maxInboxRounds bounds how often one tick re-drains messages posted
	// while applying earlier ones.
	maxInboxRounds = 16
)

// Deps are the collaborators of a Lobby. Only Service is required.
type Deps struct {
	Service     ports.MatchMaking
	Content     ports.ContentChecker
	Balancer    ports.TeamBalancer
	Warnings    ports.Warnings
	Rank        ports.RankPolicy
	Provisioner ports.Provisioner
	Game        ports.GameHost
	Rotation    ports.Rotation
	Squad       ports.Squad
	Events      ports.Publisher

	Clock  func() time.Time
	Rand   *rand.Rand
	Tracer trace.Tracer
	Logger *zerolog.Logger
	// Fatal is called on unrecoverable session loss in the dedicated role.
	Fatal func(error)
}

// CreateRequest describes a session the local process wants to host.
type CreateRequest struct {
	Map  string
	Mode string
	// Matchmaking marks a silent matchmaking search: failures are not
	// presented to the user.
	Matchmaking bool
}

type matchInfo struct {
	Map     string
	Mode    string
	Started time.Time
}

type leaveState struct {
	since  time.Time
	reason string
}

// Lobby is the session state machine.
type Lobby struct {
	cfg     Config
	deps    Deps
	log     zerolog.Logger
	baseLog zerolog.Logger
	now     func() time.Time
	tracer  trace.Tracer

	mu      sync.Mutex
	inbox   []message
	wake    chan struct{}
	stopped chan struct{}
	running atomic.Bool

	state        model.State
	requested    model.State
	pending      []lifecycle.EventKind
	stateChanged bool

	handle              model.SessionHandle
	session             model.SessionID
	host                bool
	hostConn            model.ConnectionID
	localConn           model.ConnectionID
	formedByMatchmaking bool
	started             bool
	migrating           bool

	attrs      model.Attributes
	attrsDirty bool
	localData  model.MemberData

	queue     *taskqueue.Queue
	startBusy bool
	roster    *roster.Roster
	res       *reservation.Table
	votes     *vote.Protocol
	countdown countdown
	best      bestHost

	createReq            CreateRequest
	pendingJoin          model.SessionID
	joinPassword         string
	rejoinTarget         model.SessionID
	reservationSecondary bool
	reservationPending   []model.ConnectionID
	reservationReplay    bool

	move  move
	leave leaveState
	match matchInfo

	dedicatedAddr string
	joinInfo      *packet.JoinGame
	remoteStarted bool

	spans    map[uint64]trace.Span
	limiters map[model.ConnectionID]*rate.Limiter

	published atomic.Pointer[Status]
}

// New builds a Lobby in state None and attaches it to the service.
func New(cfg Config, deps Deps) (*Lobby, error) {
	if deps.Service == nil {
		return nil, errors.New("lobby: matchmaking service is required")
	}
	fillDeps(&deps)
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}

	l := &Lobby{
		cfg:       cfg,
		deps:      deps,
		now:       deps.Clock,
		tracer:    deps.Tracer,
		wake:      make(chan struct{}, 1),
		stopped:   make(chan struct{}),
		state:     model.StateNone,
		requested: model.StateNone,
		spans:     make(map[uint64]trace.Span),
		limiters:  make(map[model.ConnectionID]*rate.Limiter),
	}
	if deps.Logger != nil {
		l.log = deps.Logger.With().Str(xglog.FieldComponent, "lobby").Logger()
	} else {
		l.log = xglog.WithComponent("lobby")
	}
	l.baseLog = l.log
	l.queue = taskqueue.New(taskqueue.Options{
		Start:      l.startTask,
		CancelCall: deps.Service.CancelTask,
		Now:        l.now,
	})
	l.roster = roster.New(cfg.PlaceholderTimeout, l.now)
	l.res = reservation.New(cfg.ReservationTimeout, l.now)
	l.votes = vote.New(deps.Rotation, deps.Rand)
	l.best = newBestHost()
	l.resetCountdown(true)

	deps.Service.Attach(sink{l: l})
	l.publish()
	return l, nil
}

func fillDeps(d *Deps) {
	if d.Content == nil {
		d.Content = allContent{}
	}
	if d.Balancer == nil {
		d.Balancer = nopBalancer{}
	}
	if d.Warnings == nil {
		d.Warnings = nopWarnings{}
	}
	if d.Rank == nil {
		d.Rank = RankRange{Min: 0, Max: 255}
	}
	if d.Game == nil {
		d.Game = nopGame{}
	}
	if d.Rotation == nil {
		d.Rotation = emptyRotation{}
	}
	if d.Squad == nil {
		d.Squad = nopSquad{}
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Tracer == nil {
		d.Tracer = telemetry.Tracer("lobbyd/lobby")
	}
}

// Run ticks the lobby until ctx is cancelled. Posted messages wake the loop
// immediately; otherwise it ticks every TickInterval.
func (l *Lobby) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("lobby: already running")
	}
	defer close(l.stopped)

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	l.log.Info().Str("role", string(l.cfg.Role)).Dur("tick", l.cfg.TickInterval).Msg("lobby loop started")
	last := l.now()
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("lobby loop stopped")
			return nil
		case <-ticker.C:
		case <-l.wake:
		}
		now := l.now()
		l.Update(now.Sub(last))
		last = now
	}
}

// Do runs fn on the lobby goroutine and waits for it to finish.
func (l *Lobby) Do(ctx context.Context, fn func(*Lobby)) error {
	done := make(chan struct{})
	l.post(funcMsg{fn: fn, done: done})
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lobby) post(m message) {
	l.mu.Lock()
	l.inbox = append(l.inbox, m)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Lobby) drainInbox() {
	for round := 0; round < maxInboxRounds; round++ {
		l.mu.Lock()
		msgs := l.inbox
		l.inbox = nil
		l.mu.Unlock()
		if len(msgs) == 0 {
			return
		}
		for _, m := range msgs {
			m.apply(l)
		}
	}
}

// Update is the per-tick step.
func (l *Lobby) Update(dt time.Duration) {
	l.startBusy = false
	l.drainInbox()
	l.drainLatch()
	l.pumpQueue()

	l.tickRoster()
	if l.host {
		if n := l.res.Expire(); n > 0 {
			l.log.Debug().Int("expired", n).Msg("reservations expired")
		}
	}
	switch l.state {
	case model.StateLobby:
		l.tickLobby(dt)
	case model.StatePreGame:
		l.tickPreGame()
	}
	l.tickBestHost()
	l.tickMove()
	l.tickLeave()
	l.flushAttributes()

	l.drainLatch()
	l.pumpQueue()
	l.publish()
}

// pumpQueue starts queued tasks. After the service reports too many tasks
// in flight no further start is tried until the next Update.
func (l *Lobby) pumpQueue() {
	for i := 0; i < maxInboxRounds && !l.startBusy; i++ {
		outcomes := l.queue.Update()
		if len(outcomes) == 0 {
			return
		}
		for _, o := range outcomes {
			l.handleOutcome(o, ports.Completion{})
		}
	}
}

func (l *Lobby) tickRoster() {
	for _, conn := range l.roster.Tick() {
		l.log.Debug().Uint32(xglog.FieldConn, uint32(conn)).Msg("placeholder expired")
		delete(l.limiters, conn)
	}
}

// State returns the current lifecycle state.
func (l *Lobby) State() model.State { return l.state }

// GetActiveStatus is the activity value advertised for discovery.
func (l *Lobby) GetActiveStatus() model.ActiveStatus { return model.ActiveStatusFor(l.state) }

// IsHost reports whether the local process hosts the session.
func (l *Lobby) IsHost() bool { return l.host }

// Session returns the stable identifier of the current session.
func (l *Lobby) Session() model.SessionID { return l.session }

// SetRotationCursor restores a persisted rotation position. It must run on
// the lobby goroutine or before Run.
func (l *Lobby) SetRotationCursor(c int) {
	l.votes.SetCursor(c)
	if l.host || l.state == model.StateNone {
		l.setMatch(l.votes.Current())
	}
}

// ApplyTuning replaces the tunable configuration. While a session is active
// the role and the advertised session shape are kept; they take effect on
// the next session.
func (l *Lobby) ApplyTuning(cfg Config) {
	if l.state != model.StateNone {
		keepSessionShape(&cfg, l.cfg)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = l.cfg.TickInterval
	}
	l.cfg = cfg
	l.res.SetTimeout(cfg.ReservationTimeout)
	l.roster.SetPlaceholderTimeout(cfg.PlaceholderTimeout)
	clear(l.limiters)
	l.log.Info().Msg("lobby tuning applied")
}

// keepSessionShape copies the fields that describe a live session from cur.
func keepSessionShape(next *Config, cur Config) {
	next.Role = cur.Role
	next.PublicSlots = cur.PublicSlots
	next.PrivateSlots = cur.PrivateSlots
	next.Ranked = cur.Ranked
	next.Matchmaking = cur.Matchmaking
	next.GameVersion = cur.GameVersion
	next.Playlist = cur.Playlist
	next.Variant = cur.Variant
	next.RequiredContent = cur.RequiredContent
	next.Language = cur.Language
	next.Dedicated = cur.Dedicated
}

func (l *Lobby) publishEvent(topic string, msg any) {
	if !l.deps.Events.TryPublish(topic, msg) {
		l.log.Debug().Str("topic", topic).Msg("lobby event dropped")
	}
}

func (l *Lobby) fatal(err error) {
	if l.deps.Fatal != nil {
		l.deps.Fatal(err)
		return
	}
	l.log.Error().Err(err).Msg("unrecoverable session loss")
}
