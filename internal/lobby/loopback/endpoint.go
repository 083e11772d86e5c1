// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package loopback

import (
	"slices"

	"github.com/google/uuid"

	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
)

// Endpoint is one participant of a Hub. It implements ports.MatchMaking.
type Endpoint struct {
	hub    *Hub
	conn   model.ConnectionID
	user   model.UserID
	name   string
	sink   ports.EventSink
	sess   *session
	handle model.SessionHandle
	data   []byte
}

var _ ports.MatchMaking = (*Endpoint)(nil)

// Conn is the connection id of the endpoint.
func (e *Endpoint) Conn() model.ConnectionID { return e.conn }

func (e *Endpoint) Attach(sink ports.EventSink) {
	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	if sink == nil {
		sink = nopSink{}
	}
	e.sink = sink
}

func (e *Endpoint) infoLocked() model.MemberInfo {
	return model.MemberInfo{
		Conn:   e.conn,
		User:   e.user,
		Name:   e.name,
		IsHost: e.sess != nil && e.sess.host == e,
		Data:   slices.Clone(e.data),
	}
}

// current returns the session e belongs to under handle h.
func (e *Endpoint) current(h model.SessionHandle) (*session, error) {
	if e.sess == nil || !h.Valid() || h != e.handle {
		return nil, model.ErrInvalidSession
	}
	return e.sess, nil
}

func (e *Endpoint) Create(p ports.CreateParams, done ports.Callback) (model.TaskID, error) {
	h := e.hub
	return h.issue(e, OpCreate, done, func(d *deliveries) (ports.Completion, error) {
		if e.sess != nil {
			return ports.Completion{}, model.ErrInternal
		}
		s := &session{
			id:      model.SessionID(uuid.NewString()),
			params:  p,
			host:    e,
			members: []*Endpoint{e},
			attrs:   p.Attributes,
		}
		h.sessions[s.id] = s
		e.sess, e.handle = s, h.newHandle()
		sink, handle, info := e.sink, e.handle, e.infoLocked()
		d.add(func() { sink.OnUserJoined(handle, info) })
		h.log.Info().Str(xglog.FieldSessionID, string(s.id)).Msg("session created")
		return ports.Completion{Handle: e.handle, Session: s.id, Host: true, Matchmaking: p.Matchmaking}, nil
	})
}

func (e *Endpoint) Join(p ports.JoinParams, done ports.Callback) (model.TaskID, error) {
	h := e.hub
	return h.issue(e, OpJoin, done, func(d *deliveries) (ports.Completion, error) {
		s, ok := h.sessions[p.Target]
		switch {
		case !ok:
			return ports.Completion{}, model.ErrNotFound
		case e.sess != nil:
			return ports.Completion{}, model.ErrInternal
		case len(s.members) >= s.capacity():
			return ports.Completion{}, model.ErrSessionFull
		case s.password != "" && p.Password != s.password:
			return ports.Completion{}, model.ErrPasswordIncorrect
		}
		existing := slices.Clone(s.members)
		s.members = append(s.members, e)
		e.sess, e.handle = s, h.newHandle()

		sink, handle, info := e.sink, e.handle, e.infoLocked()
		for _, m := range existing {
			mi := m.infoLocked()
			d.add(func() { sink.OnUserJoined(handle, mi) })
		}
		d.add(func() { sink.OnUserJoined(handle, info) })
		for _, m := range existing {
			ms, mh := m.sink, m.handle
			d.add(func() { ms.OnUserJoined(mh, info) })
		}
		return ports.Completion{Handle: e.handle, Session: s.id, Matchmaking: s.params.Matchmaking}, nil
	})
}

func (e *Endpoint) Migrate(h model.SessionHandle, done ports.Callback) (model.TaskID, error) {
	return e.hub.issue(e, OpMigrate, done, func(*deliveries) (ports.Completion, error) {
		s, err := e.current(h)
		if err != nil {
			return ports.Completion{}, err
		}
		return ports.Completion{Handle: e.handle, Session: s.id, Host: s.host == e}, nil
	})
}

func (e *Endpoint) Update(h model.SessionHandle, attrs model.Attributes, done ports.Callback) (model.TaskID, error) {
	return e.hub.issue(e, OpUpdate, done, func(*deliveries) (ports.Completion, error) {
		s, err := e.current(h)
		if err != nil {
			return ports.Completion{}, err
		}
		s.attrs = attrs
		return ports.Completion{}, nil
	})
}

func (e *Endpoint) Delete(h model.SessionHandle, done ports.Callback) (model.TaskID, error) {
	return e.hub.issue(e, OpDelete, done, func(d *deliveries) (ports.Completion, error) {
		if _, err := e.current(h); err != nil {
			return ports.Completion{}, err
		}
		e.hub.removeLocked(e, d)
		return ports.Completion{}, nil
	})
}

func (e *Endpoint) Start(h model.SessionHandle, done ports.Callback) (model.TaskID, error) {
	return e.setStarted(OpStart, h, true, done)
}

func (e *Endpoint) End(h model.SessionHandle, done ports.Callback) (model.TaskID, error) {
	return e.setStarted(OpEnd, h, false, done)
}

func (e *Endpoint) setStarted(op Op, h model.SessionHandle, v bool, done ports.Callback) (model.TaskID, error) {
	return e.hub.issue(e, op, done, func(*deliveries) (ports.Completion, error) {
		s, err := e.current(h)
		if err != nil {
			return ports.Completion{}, err
		}
		s.started = v
		return ports.Completion{}, nil
	})
}

func (e *Endpoint) Query(h model.SessionHandle, done ports.Callback) (model.TaskID, error) {
	return e.hub.issue(e, OpQuery, done, func(*deliveries) (ports.Completion, error) {
		s, err := e.current(h)
		if err != nil {
			return ports.Completion{}, err
		}
		out := ports.Completion{Session: s.id, Attributes: s.attrs}
		for _, m := range s.members {
			out.Members = append(out.Members, m.infoLocked())
		}
		return out, nil
	})
}

func (e *Endpoint) EnsureBestHost(h model.SessionHandle, done ports.Callback) (model.TaskID, error) {
	return e.hub.issue(e, OpEnsureBestHost, done, func(*deliveries) (ports.Completion, error) {
		if _, err := e.current(h); err != nil {
			return ports.Completion{}, err
		}
		return ports.Completion{}, nil
	})
}

func (e *Endpoint) SetLocalUserData(h model.SessionHandle, data []byte, done ports.Callback) (model.TaskID, error) {
	data = slices.Clone(data)
	return e.hub.issue(e, OpSetLocalUserData, done, func(d *deliveries) (ports.Completion, error) {
		s, err := e.current(h)
		if err != nil {
			return ports.Completion{}, err
		}
		e.data = data
		info := e.infoLocked()
		for _, m := range s.members {
			ms, mh := m.sink, m.handle
			d.add(func() { ms.OnUserUpdated(mh, info) })
		}
		return ports.Completion{}, nil
	})
}

func (e *Endpoint) TerminateHostHinting(h model.SessionHandle, done ports.Callback) (model.TaskID, error) {
	return e.hub.issue(e, OpTerminateHostHinting, done, func(*deliveries) (ports.Completion, error) {
		if _, err := e.current(h); err != nil {
			return ports.Completion{}, err
		}
		return ports.Completion{}, nil
	})
}

func (e *Endpoint) CancelTask(id model.TaskID) { e.hub.cancel(id) }

// SendTo delivers b synchronously to the sink of the member behind to.
func (e *Endpoint) SendTo(h model.SessionHandle, to model.ConnectionID, b []byte) error {
	e.hub.mu.Lock()
	s, err := e.current(h)
	if err != nil {
		e.hub.mu.Unlock()
		return err
	}
	idx := slices.IndexFunc(s.members, func(m *Endpoint) bool { return m.conn == to })
	if idx < 0 {
		e.hub.mu.Unlock()
		return model.ErrUserNotInSession
	}
	target := s.members[idx]
	sink, handle, from := target.sink, target.handle, e.conn
	e.hub.mu.Unlock()

	sink.OnPacket(handle, from, slices.Clone(b))
	return nil
}

func (e *Endpoint) SessionID(h model.SessionHandle) model.SessionID {
	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	s, err := e.current(h)
	if err != nil {
		return model.InvalidSessionID
	}
	return s.id
}

func (e *Endpoint) LocalConnection(model.SessionHandle) model.ConnectionID { return e.conn }

type nopSink struct{}

func (nopSink) OnUserJoined(model.SessionHandle, model.MemberInfo)       {}
func (nopSink) OnUserLeft(model.SessionHandle, model.ConnectionID)       {}
func (nopSink) OnUserUpdated(model.SessionHandle, model.MemberInfo)      {}
func (nopSink) OnPacket(model.SessionHandle, model.ConnectionID, []byte) {}
func (nopSink) OnMigrationInitiate(model.SessionHandle, bool) ports.MigrationDecision {
	return ports.MigrationContinue
}
func (nopSink) OnDemoteToClient(model.SessionHandle)          {}
func (nopSink) OnPromoteToServer(model.SessionHandle)         {}
func (nopSink) OnMigrationFinalise(model.SessionHandle, bool) {}
func (nopSink) OnMigrationTerminate(model.SessionHandle)      {}
func (nopSink) OnMigrationReset(model.SessionHandle)          {}
