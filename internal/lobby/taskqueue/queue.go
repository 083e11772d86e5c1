// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package taskqueue sequences asynchronous session operations so that at most
// one is outstanding against the matchmaking service.
package taskqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// ErrCancelled is reported for a vital task whose cancel was deferred until completion.
var ErrCancelled = errors.New("task cancelled")

// Status of a task in the queue.
type Status uint8

const (
	StatusQueued Status = iota
	StatusInFlight
	StatusFinished
)

// Task is one queue entry.
type Task struct {
	Seq        uint64
	Kind       Kind
	Status     Status
	NetID      model.TaskID
	Attempts   int
	Restarts   int
	Cancelling bool
	QueuedAt   time.Time
	StartedAt  time.Time
}

// Action is what the queue did with a finished call.
type Action uint8

const (
	// ActionIgnored means the completion did not match the in-flight task.
	ActionIgnored Action = iota
	ActionSucceeded
	ActionRestarted
	ActionRetry
	ActionFailed
	ActionCancelled
	// ActionSkipped means the task finished at start without a network call.
	ActionSkipped
)

func (a Action) String() string {
	switch a {
	case ActionSucceeded:
		return "succeeded"
	case ActionRestarted:
		return "restarted"
	case ActionRetry:
		return "retry"
	case ActionFailed:
		return "failed"
	case ActionCancelled:
		return "cancelled"
	case ActionSkipped:
		return "skipped"
	default:
		return "ignored"
	}
}

// Outcome describes how the queue resolved a task.
type Outcome struct {
	Task   Task
	Action Action
	Err    error
	Class  model.ErrorClass
}

// Done reports whether the task left the queue.
func (o Outcome) Done() bool {
	switch o.Action {
	case ActionSucceeded, ActionFailed, ActionCancelled, ActionSkipped:
		return true
	}
	return false
}

// StartFunc issues exactly one external call for t and returns its
// correlation id. Returning InvalidTaskID with a nil error finishes the task
// immediately without a network call.
type StartFunc func(t *Task) (model.TaskID, error)

// Options wires the queue to the service.
type Options struct {
	Start      StartFunc
	CancelCall func(model.TaskID)
	Now        func() time.Time
}

// Queue is a FIFO of session operations. It is not safe for concurrent use;
// the owning lobby goroutine serialises all calls.
type Queue struct {
	opts     Options
	tasks    []*Task
	seq      uint64
	closing  bool
	outcomes []Outcome
}

func New(opts Options) *Queue {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CancelCall == nil {
		opts.CancelCall = func(model.TaskID) {}
	}
	return &Queue{opts: opts}
}

// Add appends kind unless it is already queued. The in-flight task does not
// count as queued, so a change arriving mid-call schedules one more run.
func (q *Queue) Add(kind Kind, allowDuplicates bool) bool {
	if !allowDuplicates {
		for _, t := range q.tasks {
			if t.Kind == kind && t.Status == StatusQueued {
				return false
			}
		}
	}
	q.seq++
	q.tasks = append(q.tasks, &Task{Seq: q.seq, Kind: kind, QueuedAt: q.opts.Now()})
	return true
}

// Cancel removes queued tasks of kind. A matching in-flight task has its call
// cancelled, unless it is vital, in which case it is flagged and runs to completion.
func (q *Queue) Cancel(kind Kind) {
	q.cancelWhere(func(t *Task) bool { return t.Kind == kind })
}

// CancelAll drops every non-vital task. With vitalToo queued vital tasks are
// dropped as well; an in-flight vital task is still only flagged.
func (q *Queue) CancelAll(vitalToo bool) {
	q.cancelWhere(func(t *Task) bool { return vitalToo || !PolicyFor(t.Kind).Vital })
}

func (q *Queue) cancelWhere(match func(*Task) bool) {
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if !match(t) {
			kept = append(kept, t)
			continue
		}
		if t.Status != StatusInFlight {
			continue
		}
		if PolicyFor(t.Kind).Vital {
			t.Cancelling = true
			kept = append(kept, t)
			continue
		}
		q.opts.CancelCall(t.NetID)
		t.Status = StatusFinished
		q.outcomes = append(q.outcomes, Outcome{Task: *t, Action: ActionCancelled, Err: ErrCancelled})
	}
	clearTail(q.tasks, len(kept))
	q.tasks = kept
}

// PurgeHandleTasks drops queued tasks that need a live session handle.
func (q *Queue) PurgeHandleTasks() {
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if t.Status == StatusQueued && PolicyFor(t.Kind).NeedsHandle {
			continue
		}
		kept = append(kept, t)
	}
	clearTail(q.tasks, len(kept))
	q.tasks = kept
}

// SetClosing marks the queue as being torn down; timeouts then finish tasks
// instead of restarting them.
func (q *Queue) SetClosing(v bool) { q.closing = v }

// Closing reports whether teardown is in progress.
func (q *Queue) Closing() bool { return q.closing }

// Reset drops everything, cancelling an outstanding call.
func (q *Queue) Reset() {
	if t, ok := q.InFlight(); ok {
		q.opts.CancelCall(t.NetID)
	}
	clearTail(q.tasks, 0)
	q.tasks = q.tasks[:0]
	q.closing = false
	q.outcomes = nil
}

// InFlight returns the head task when it has an outstanding call.
func (q *Queue) InFlight() (*Task, bool) {
	if len(q.tasks) == 0 || q.tasks[0].Status != StatusInFlight {
		return nil, false
	}
	return q.tasks[0], true
}

// Kinds returns the queue order, head first.
func (q *Queue) Kinds() []Kind {
	out := make([]Kind, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = t.Kind
	}
	return out
}

// Len is the number of tasks including the in-flight head.
func (q *Queue) Len() int { return len(q.tasks) }

// Has reports whether kind is queued or in flight.
func (q *Queue) Has(kind Kind) bool {
	for _, t := range q.tasks {
		if t.Kind == kind {
			return true
		}
	}
	return false
}

// Update starts the head task when nothing is in flight. It returns the
// outcomes resolved since the last call: tasks cancelled while in flight and
// tasks that finished at start.
func (q *Queue) Update() []Outcome {
	for len(q.tasks) > 0 && q.tasks[0].Status == StatusQueued {
		head := q.tasks[0]
		head.Attempts++
		head.StartedAt = q.opts.Now()
		head.Status = StatusInFlight
		id, err := q.opts.Start(head)
		switch {
		case err == nil && id.Valid():
			head.NetID = id
		case err == nil:
			q.outcomes = append(q.outcomes, q.pop(Outcome{Action: ActionSkipped}))
			continue
		case errors.Is(err, model.ErrTooManyTasks):
			head.Status = StatusQueued
		default:
			class := model.Classify(err)
			if class == model.ClassGone {
				q.outcomes = append(q.outcomes, q.pop(Outcome{Action: ActionSucceeded, Class: class}))
				continue
			}
			q.outcomes = append(q.outcomes, q.pop(Outcome{Action: ActionFailed, Err: fmt.Errorf("start %s: %w", head.Kind, err), Class: class}))
			continue
		}
		break
	}
	out := q.outcomes
	q.outcomes = nil
	return out
}

// Complete resolves the in-flight call identified by id.
func (q *Queue) Complete(id model.TaskID, err error) Outcome {
	head, ok := q.InFlight()
	if !ok || head.NetID != id || !id.Valid() {
		return Outcome{Action: ActionIgnored, Err: err}
	}
	class := model.Classify(err)
	if head.Cancelling {
		return q.pop(Outcome{Action: ActionCancelled, Err: errors.Join(ErrCancelled, err), Class: class})
	}
	switch class {
	case model.ClassNone, model.ClassGone:
		return q.pop(Outcome{Action: ActionSucceeded, Class: class})
	case model.ClassExhausted:
		head.Status = StatusQueued
		head.NetID = model.InvalidTaskID
		return Outcome{Task: *head, Action: ActionRetry, Err: err, Class: class}
	case model.ClassTransient:
		p := PolicyFor(head.Kind)
		if p.RestartOnTimeout && !q.closing && (p.MaxRestarts == 0 || head.Restarts < p.MaxRestarts) {
			head.Status = StatusQueued
			head.NetID = model.InvalidTaskID
			head.Restarts++
			return Outcome{Task: *head, Action: ActionRestarted, Err: err, Class: class}
		}
	}
	return q.pop(Outcome{Action: ActionFailed, Err: err, Class: class})
}

func (q *Queue) pop(o Outcome) Outcome {
	head := q.tasks[0]
	head.Status = StatusFinished
	o.Task = *head
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return o
}

func clearTail(ts []*Task, from int) {
	for i := from; i < len(ts); i++ {
		ts[i] = nil
	}
}
