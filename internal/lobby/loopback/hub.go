// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package loopback is an in-process matchmaking service. Several endpoints
// share one Hub, which routes roster events, packets and host migration
// between them. The daemon uses it as its session transport; tests use it to
// run hosts and members against each other.
package loopback

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
)

// Op names a service call.
type Op string

const (
	OpCreate               Op = "create"
	OpJoin                 Op = "join"
	OpMigrate              Op = "migrate"
	OpUpdate               Op = "update"
	OpDelete               Op = "delete"
	OpStart                Op = "start"
	OpEnd                  Op = "end"
	OpQuery                Op = "query"
	OpEnsureBestHost       Op = "ensure_best_host"
	OpSetLocalUserData     Op = "set_local_user_data"
	OpTerminateHostHinting Op = "terminate_host_hinting"
)

// Options tune a Hub.
type Options struct {
	// Manual holds every call until Complete is called for it.
	Manual          bool
	// CarryNetObjects is passed to migration initiation.
	CarryNetObjects bool
	Logger          *zerolog.Logger
}

type call struct {
	id     model.TaskID
	op     Op
	ep     *Endpoint
	done   ports.Callback
	effect func(d *deliveries) (ports.Completion, error)
}

type session struct {
	id       model.SessionID
	params   ports.CreateParams
	password string
	host     *Endpoint
	members  []*Endpoint
	attrs    model.Attributes
	started  bool
}

func (s *session) capacity() int { return s.params.PublicSlots + s.params.PrivateSlots }

// deliveries are sink calls collected under the hub lock and run after it
// is released.
type deliveries []func()

func (d *deliveries) add(fn func()) { *d = append(*d, fn) }

func (d deliveries) run() {
	for _, fn := range d {
		fn()
	}
}

// Hub is the shared service.
type Hub struct {
	mu         sync.Mutex
	opts       Options
	log        zerolog.Logger
	sessions   map[model.SessionID]*session
	nextConn   uint32
	nextTask   uint32
	nextHandle uint32
	pending    []*call
	faults     map[Op][]error
	startFault map[Op][]error
	calls      map[Op]int
}

func NewHub(opts Options) *Hub {
	h := &Hub{
		opts:       opts,
		sessions:   make(map[model.SessionID]*session),
		faults:     make(map[Op][]error),
		startFault: make(map[Op][]error),
		calls:      make(map[Op]int),
	}
	if opts.Logger != nil {
		h.log = opts.Logger.With().Str(xglog.FieldComponent, "loopback").Logger()
	} else {
		h.log = xglog.WithComponent("loopback")
	}
	return h
}

// Endpoint creates a new participant with its own connection id.
func (h *Hub) Endpoint(name string) *Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextConn++
	return &Endpoint{
		hub:  h,
		sink: nopSink{},
		conn: model.ConnectionID(h.nextConn),
		user: model.UserID(uuid.NewString()),
		name: name,
	}
}

// SetManual switches between holding and immediately completing calls.
// Calls already held stay pending.
func (h *Hub) SetManual(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts.Manual = v
}

// Fail makes the next calls of op complete with errs, one per call.
func (h *Hub) Fail(op Op, errs ...error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faults[op] = append(h.faults[op], errs...)
}

// FailStart makes the next calls of op return errs synchronously.
func (h *Hub) FailStart(op Op, errs ...error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.startFault[op] = append(h.startFault[op], errs...)
}

// Calls counts the calls issued for op.
func (h *Hub) Calls(op Op) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[op]
}

// Pending lists the ops of calls held in manual mode, oldest first.
func (h *Hub) Pending() []Op {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Op, len(h.pending))
	for i, c := range h.pending {
		out[i] = c.op
	}
	return out
}

// Sessions lists the live session ids.
func (h *Hub) Sessions() []model.SessionID {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.SessionID, 0, len(h.sessions))
	for id := range h.sessions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// SetPassword protects a session.
func (h *Hub) SetPassword(id model.SessionID, password string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		s.password = password
	}
}

// Members returns the connection ids in session id, host first.
func (h *Hub) Members(id model.SessionID) []model.ConnectionID {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil
	}
	out := []model.ConnectionID{}
	if s.host != nil {
		out = append(out, s.host.conn)
	}
	for _, m := range s.members {
		if m != s.host {
			out = append(out, m.conn)
		}
	}
	return out
}

// Attributes returns the last attributes pushed by the host of id.
func (h *Hub) Attributes(id model.SessionID) (model.Attributes, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		return model.Attributes{}, false
	}
	return s.attrs, true
}

// Complete finishes the oldest pending call of op in manual mode.
func (h *Hub) Complete(op Op, err error) bool {
	h.mu.Lock()
	idx := slices.IndexFunc(h.pending, func(c *call) bool { return c.op == op })
	if idx < 0 {
		h.mu.Unlock()
		return false
	}
	c := h.pending[idx]
	h.pending = slices.Delete(h.pending, idx, idx+1)
	h.mu.Unlock()
	h.finish(c, err)
	return true
}

// CompleteAll finishes every pending call successfully, in order.
func (h *Hub) CompleteAll() int {
	h.mu.Lock()
	calls := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, c := range calls {
		h.finish(c, nil)
	}
	return len(calls)
}

func (h *Hub) issue(ep *Endpoint, op Op, done ports.Callback, effect func(d *deliveries) (ports.Completion, error)) (model.TaskID, error) {
	h.mu.Lock()
	h.calls[op]++
	if errs := h.startFault[op]; len(errs) > 0 {
		h.startFault[op] = errs[1:]
		h.mu.Unlock()
		return model.InvalidTaskID, errs[0]
	}
	h.nextTask++
	c := &call{id: model.TaskID(h.nextTask), op: op, ep: ep, done: done, effect: effect}
	if h.opts.Manual {
		h.pending = append(h.pending, c)
		h.mu.Unlock()
		return c.id, nil
	}
	h.mu.Unlock()
	h.finish(c, nil)
	return c.id, nil
}

func (h *Hub) finish(c *call, err error) {
	var d deliveries
	var res ports.Completion

	h.mu.Lock()
	if err == nil {
		if errs := h.faults[c.op]; len(errs) > 0 {
			err = errs[0]
			h.faults[c.op] = errs[1:]
		}
	}
	if err == nil {
		res, err = c.effect(&d)
	}
	h.mu.Unlock()

	d.run()
	res.Task = c.id
	res.Err = err
	h.log.Debug().Str("op", string(c.op)).Uint32(xglog.FieldTaskID, uint32(c.id)).Err(err).Msg("call completed")
	c.done(res)
}

func (h *Hub) cancel(id model.TaskID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = slices.DeleteFunc(h.pending, func(c *call) bool { return c.id == id })
}

func (h *Hub) newHandle() model.SessionHandle {
	h.nextHandle++
	return model.SessionHandle(h.nextHandle)
}

// Drop removes ep from its session as if its connection was lost.
func (h *Hub) Drop(ep *Endpoint) {
	var d deliveries
	h.mu.Lock()
	h.removeLocked(ep, &d)
	h.mu.Unlock()
	d.run()
}

// removeLocked takes ep out of its session and migrates the host role when
// the host left a non-empty session.
func (h *Hub) removeLocked(ep *Endpoint, d *deliveries) {
	s := ep.sess
	if s == nil {
		return
	}
	s.members = slices.DeleteFunc(s.members, func(m *Endpoint) bool { return m == ep })
	ep.sess, ep.handle = nil, model.InvalidHandle
	for _, m := range s.members {
		sink, handle, conn := m.sink, m.handle, ep.conn
		d.add(func() { sink.OnUserLeft(handle, conn) })
	}
	if len(s.members) == 0 {
		delete(h.sessions, s.id)
		return
	}
	if s.host == ep {
		h.migrateLocked(s, d)
	}
}

func (h *Hub) migrateLocked(s *session, d *deliveries) {
	newHost := s.members[0]
	for _, m := range s.members[1:] {
		if m.conn < newHost.conn {
			newHost = m
		}
	}
	s.host = newHost
	type target struct {
		sink    ports.EventSink
		handle  model.SessionHandle
		newHost bool
	}
	targets := make([]target, len(s.members))
	for i, m := range s.members {
		targets[i] = target{sink: m.sink, handle: m.handle, newHost: m == newHost}
	}
	carry := h.opts.CarryNetObjects
	newInfo := newHost.infoLocked()
	h.log.Info().Str(xglog.FieldSessionID, string(s.id)).Uint32(xglog.FieldConn, uint32(newHost.conn)).Msg("migrating host")

	d.add(func() {
		terminate := false
		for _, t := range targets {
			if t.sink.OnMigrationInitiate(t.handle, carry) == ports.MigrationTerminate {
				terminate = true
			}
		}
		if terminate {
			for _, t := range targets {
				t.sink.OnMigrationTerminate(t.handle)
			}
			return
		}
		for _, t := range targets {
			if t.newHost {
				t.sink.OnPromoteToServer(t.handle)
			}
		}
		for _, t := range targets {
			t.sink.OnUserUpdated(t.handle, newInfo)
		}
		for _, t := range targets {
			t.sink.OnMigrationFinalise(t.handle, t.newHost)
		}
	})
}

func (h *Hub) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("loopback hub: %d sessions", len(h.sessions))
}
