// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/events"
	"github.com/ManuGH/lobbyd/internal/lobby/lifecycle"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
	"github.com/ManuGH/lobbyd/internal/lobby/taskqueue"
	"github.com/ManuGH/lobbyd/internal/metrics"
	"github.com/ManuGH/lobbyd/internal/telemetry"
)

const skip = model.InvalidTaskID

func (l *Lobby) done(kind taskqueue.Kind) ports.Callback {
	return func(c ports.Completion) {
		l.post(completionMsg{kind: kind, c: c})
	}
}

// startTask issues the service call for t. Tasks whose precondition no
// longer holds finish without a call.
func (l *Lobby) startTask(t *taskqueue.Task) (model.TaskID, error) {
	if taskqueue.PolicyFor(t.Kind).NeedsHandle && !l.handle.Valid() {
		return skip, nil
	}
	svc := l.deps.Service
	done := l.done(t.Kind)

	var (
		id  model.TaskID
		err error
	)
	switch t.Kind {
	case taskqueue.KindCreate:
		id, err = svc.Create(ports.CreateParams{
			PublicSlots:  l.cfg.PublicSlots,
			PrivateSlots: l.cfg.PrivateSlots,
			Ranked:       l.cfg.Ranked,
			Matchmaking:  l.createReq.Matchmaking || l.cfg.Matchmaking,
			Attributes:   l.attrs,
		}, done)
	case taskqueue.KindJoin:
		if !l.pendingJoin.Valid() {
			return skip, nil
		}
		id, err = svc.Join(ports.JoinParams{Target: l.pendingJoin, Password: l.joinPassword}, done)
	case taskqueue.KindMigrate:
		id, err = svc.Migrate(l.handle, done)
	case taskqueue.KindUpdate:
		if !l.host {
			return skip, nil
		}
		id, err = svc.Update(l.handle, l.attrs, done)
	case taskqueue.KindDelete:
		id, err = svc.Delete(l.handle, done)
	case taskqueue.KindSessionStart:
		if l.started {
			return skip, nil
		}
		id, err = svc.Start(l.handle, done)
	case taskqueue.KindSessionEnd:
		if !l.started {
			return skip, nil
		}
		id, err = svc.End(l.handle, done)
	case taskqueue.KindQuery:
		if l.host {
			return skip, nil
		}
		id, err = svc.Query(l.handle, done)
	case taskqueue.KindEnsureBestHost:
		if !l.host || l.migrating {
			return skip, nil
		}
		id, err = svc.EnsureBestHost(l.handle, done)
	case taskqueue.KindSetLocalUserData:
		id, err = svc.SetLocalUserData(l.handle, packet.EncodeMemberData(l.localData), done)
	case taskqueue.KindTerminateHostHinting:
		if !l.host || l.roster.RemoteCount(l.localConn) == 0 {
			return skip, nil
		}
		id, err = svc.TerminateHostHinting(l.handle, done)
	case taskqueue.KindDedicatedSetup:
		if l.deps.Provisioner == nil {
			return skip, nil
		}
		id, err = l.deps.Provisioner.Request(l.session, done)
	default:
		return skip, fmt.Errorf("unknown task kind %q", t.Kind)
	}
	if errors.Is(err, model.ErrTooManyTasks) {
		l.startBusy = true
		l.log.Debug().Str(xglog.FieldTask, string(t.Kind)).Msg("service busy, start deferred")
	}
	if err == nil && id.Valid() {
		metrics.RecordTaskStart(string(t.Kind))
		l.startSpan(t)
		l.log.Debug().
			Str(xglog.FieldTask, string(t.Kind)).
			Uint32(xglog.FieldTaskID, uint32(id)).
			Int(xglog.FieldAttempt, t.Attempts).
			Msg("task started")
	}
	return id, err
}

func (l *Lobby) startSpan(t *taskqueue.Task) {
	_, span := l.tracer.Start(context.Background(), "lobby.task/"+string(t.Kind),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.TaskAttributes(string(t.Kind), t.Attempts)...),
		trace.WithAttributes(telemetry.SessionAttributes(string(l.session), uint32(l.handle), string(l.state), l.host)...),
	)
	if old, ok := l.spans[t.Seq]; ok {
		old.End()
	}
	l.spans[t.Seq] = span
}

func (l *Lobby) endSpan(o taskqueue.Outcome) {
	span, ok := l.spans[o.Task.Seq]
	if !ok {
		return
	}
	delete(l.spans, o.Task.Seq)
	span.SetAttributes(telemetry.OutcomeAttributes(o.Action.String(), o.Class.String())...)
	if o.Action == taskqueue.ActionFailed {
		span.SetAttributes(telemetry.ErrorAttributes(o.Class.String())...)
		if o.Err != nil {
			span.SetStatus(codes.Error, o.Err.Error())
		}
	}
	span.End()
}

func (l *Lobby) onCompletion(kind taskqueue.Kind, c ports.Completion) {
	o := l.queue.Complete(c.Task, c.Err)
	if o.Action == taskqueue.ActionIgnored {
		l.log.Debug().Str(xglog.FieldTask, string(kind)).Uint32(xglog.FieldTaskID, uint32(c.Task)).Msg("stale completion ignored")
		return
	}
	l.handleOutcome(o, c)
}

func (l *Lobby) handleOutcome(o taskqueue.Outcome, c ports.Completion) {
	kind := o.Task.Kind
	var elapsed time.Duration
	if !o.Task.StartedAt.IsZero() {
		elapsed = l.now().Sub(o.Task.StartedAt)
	}
	metrics.RecordTaskOutcome(string(kind), o.Action.String(), elapsed)
	l.endSpan(o)

	ev := l.log.Debug()
	if o.Action == taskqueue.ActionFailed {
		ev = l.log.Warn()
	}
	ev.Str(xglog.FieldTask, string(kind)).
		Str(xglog.FieldOutcome, o.Action.String()).
		Str("class", o.Class.String()).
		Err(o.Err).
		Msg("task finished")

	switch o.Action {
	case taskqueue.ActionSucceeded, taskqueue.ActionSkipped:
		l.onTaskSucceeded(kind, c, o.Action == taskqueue.ActionSkipped)
	case taskqueue.ActionFailed:
		l.onTaskFailed(kind, o)
	case taskqueue.ActionCancelled:
		l.onTaskCancelled(kind, c)
	}
}

func (l *Lobby) onTaskSucceeded(kind taskqueue.Kind, c ports.Completion, skipped bool) {
	switch kind {
	case taskqueue.KindCreate:
		if !c.Handle.Valid() {
			l.onJoinFailed(kind, fmt.Errorf("create returned no session: %w", model.ErrInvalidSession))
			return
		}
		l.adoptSession(c, true, l.createReq.Matchmaking || c.Matchmaking)
	case taskqueue.KindJoin:
		if skipped || !c.Handle.Valid() {
			l.onJoinFailed(kind, fmt.Errorf("join returned no session: %w", model.ErrNotFound))
			return
		}
		l.pendingJoin, l.joinPassword = "", ""
		l.adoptSession(c, c.Host, c.Matchmaking || l.createReq.Matchmaking)
	case taskqueue.KindMigrate:
		if c.Handle.Valid() {
			l.handle = c.Handle
			l.session = l.deps.Service.SessionID(c.Handle)
		}
	case taskqueue.KindUpdate:
		if !skipped {
			l.publishAttributes()
		}
	case taskqueue.KindDelete:
		l.finishLeave(l.leave.reason, lifecycle.EvLeft)
	case taskqueue.KindSessionStart:
		if !skipped {
			l.started = true
		}
		if l.requested == model.StateJoinSession {
			_ = l.request(lifecycle.EvSessionStarted)
		}
	case taskqueue.KindSessionEnd:
		l.started = false
		if l.requested == model.StateEndSession {
			_ = l.request(lifecycle.EvGameEnded)
		}
	case taskqueue.KindQuery:
		for _, m := range c.Members {
			l.onUserJoined(m)
		}
		if !l.host && !skipped {
			l.attrs = c.Attributes
		}
	case taskqueue.KindEnsureBestHost:
		if c.HostChanged {
			l.log.Info().Msg("best-host check moved hosting")
		}
	case taskqueue.KindDedicatedSetup:
		if c.Address != "" {
			l.dedicatedAddr = c.Address
			l.broadcast(&packet.DedicatedServerInfo{Address: c.Address})
		}
	}
}

func (l *Lobby) onTaskFailed(kind taskqueue.Kind, o taskqueue.Outcome) {
	switch kind {
	case taskqueue.KindCreate, taskqueue.KindJoin:
		l.onJoinFailed(kind, o.Err)
		return
	case taskqueue.KindDelete:
		l.finishLeave(l.leave.reason, lifecycle.EvLeft)
		return
	case taskqueue.KindSessionStart, taskqueue.KindDedicatedSetup:
		l.queue.Cancel(taskqueue.KindSessionStart)
		if l.requested == model.StateJoinSession || l.requested == model.StatePreGame {
			_ = l.request(lifecycle.EvStartAborted)
		}
	case taskqueue.KindSessionEnd:
		l.started = false
		if l.requested == model.StateEndSession {
			_ = l.request(lifecycle.EvGameEnded)
		}
	}
	if l.requested == model.StateLeaving {
		return
	}
	l.reportFailure(ports.WarnTaskFailed, string(kind), o.Err)
}

// onTaskCancelled runs when a vital task whose cancel was deferred finally
// completes. A session created in the meantime is torn down again.
func (l *Lobby) onTaskCancelled(kind taskqueue.Kind, c ports.Completion) {
	if kind != taskqueue.KindCreate && kind != taskqueue.KindJoin {
		return
	}
	if c.Err == nil && c.Handle.Valid() && !l.handle.Valid() {
		l.handle = c.Handle
		l.session = c.Session
		l.host = kind == taskqueue.KindCreate || c.Host
		l.localConn = l.deps.Service.LocalConnection(c.Handle)
	}
	if l.requested != model.StateLeaving {
		return
	}
	if l.handle.Valid() {
		l.queue.SetClosing(true)
		l.queue.Add(taskqueue.KindDelete, false)
		return
	}
	l.finishLeave(l.leave.reason, lifecycle.EvLeft)
}

func (l *Lobby) adoptSession(c ports.Completion, host, matchmaking bool) {
	l.handle = c.Handle
	l.session = c.Session
	if !l.session.Valid() {
		l.session = l.deps.Service.SessionID(c.Handle)
	}
	l.host = host
	l.localConn = l.deps.Service.LocalConnection(c.Handle)
	if host {
		l.hostConn = l.localConn
		l.roster.SetHost(l.localConn)
	}
	l.formedByMatchmaking = matchmaking
	l.log = l.baseLog.With().Str(xglog.FieldSessionID, string(l.session)).Logger()
	l.log.Info().Bool("host", host).Uint32(xglog.FieldHandle, uint32(l.handle)).Msg("session ready")
	_ = l.request(lifecycle.EvSessionReady)
}

// onJoinFailed handles a hard Create/Join failure. The session never became
// valid, so the queue is reset and the lobby backs out.
func (l *Lobby) onJoinFailed(kind taskqueue.Kind, err error) {
	target := l.pendingJoin
	l.pendingJoin, l.joinPassword = "", ""
	l.queue.Reset()

	switch {
	case model.Classify(err) == model.ClassSignIn:
		l.reportFailure(ports.WarnSignIn, string(kind), err)
	case errors.Is(err, model.ErrPasswordIncorrect) && kind == taskqueue.KindJoin:
		if !l.silent() {
			l.deps.Warnings.PromptPassword(target)
		}
	case errors.Is(err, model.ErrSessionFull):
		l.reportFailure(ports.WarnSessionFull, string(target), err)
		if l.deps.Squad.IsMember() {
			l.deps.Squad.Leave()
		}
	case errors.Is(err, model.ErrNotFound):
		l.reportFailure(ports.WarnSessionNotFound, string(target), err)
	default:
		l.reportFailure(ports.WarnJoinFailed, string(kind), err)
	}
	l.leaveWith(false, "join_failed")
}

func (l *Lobby) silent() bool {
	return l.createReq.Matchmaking || l.formedByMatchmaking
}

// reportFailure surfaces err unless a silent matchmaking search is running.
// Sign-in class errors get the sign-in prompt instead of an error dialog and
// terminate a dedicated server.
func (l *Lobby) reportFailure(name, param string, err error) {
	if model.Classify(err) == model.ClassSignIn {
		if l.cfg.Role == model.RoleDedicated {
			l.fatal(fmt.Errorf("%s: %w", param, err))
			return
		}
		name = ports.WarnSignIn
	}
	if l.silent() {
		l.log.Debug().Str("warning", name).Str("param", param).Msg("warning suppressed during matchmaking")
		return
	}
	l.deps.Warnings.Warn(name, param)
}

// warnUser always reaches the presenter.
func (l *Lobby) warnUser(name, param string) {
	l.deps.Warnings.Warn(name, param)
}

func (l *Lobby) publishAttributes() {
	l.publishEvent(events.TopicAttributes, events.AttributesChanged{
		Session:    l.session,
		Attributes: l.attrs.Map(),
		Members:    l.roster.Len(),
		Capacity:   l.cfg.Capacity(),
		At:         l.now(),
	})
}

func (l *Lobby) setAttr(k model.AttrKey, v uint32) {
	if l.attrs.Set(k, v) && l.host {
		l.attrsDirty = true
	}
}

func (l *Lobby) flushAttributes() {
	if !l.attrsDirty || !l.host || !l.handle.Valid() {
		return
	}
	switch l.requested {
	case model.StateLeaving, model.StateNone:
		return
	}
	l.queue.Add(taskqueue.KindUpdate, false)
	l.attrsDirty = false
}
