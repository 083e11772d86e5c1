// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package taskqueue

import (
	"errors"
	"testing"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	next      model.TaskID
	started   []Kind
	cancelled []model.TaskID
	startErr  map[Kind]error
	skip      map[Kind]bool
}

func (f *fakeService) start(t *Task) (model.TaskID, error) {
	f.started = append(f.started, t.Kind)
	if err := f.startErr[t.Kind]; err != nil {
		return model.InvalidTaskID, err
	}
	if f.skip[t.Kind] {
		return model.InvalidTaskID, nil
	}
	f.next++
	return f.next, nil
}

func newQueue(t *testing.T) (*Queue, *fakeService) {
	t.Helper()
	f := &fakeService{startErr: map[Kind]error{}, skip: map[Kind]bool{}}
	q := New(Options{
		Start:      f.start,
		CancelCall: func(id model.TaskID) { f.cancelled = append(f.cancelled, id) },
	})
	return q, f
}

// inFlightCount walks the queue and counts tasks with an outstanding call.
func inFlightCount(q *Queue) int {
	n := 0
	for _, t := range q.tasks {
		if t.NetID.Valid() {
			n++
		}
	}
	return n
}

func TestAdd_DeduplicatesQueued(t *testing.T) {
	q, _ := newQueue(t)
	assert.True(t, q.Add(KindUpdate, false))
	assert.False(t, q.Add(KindUpdate, false))
	assert.True(t, q.Add(KindUpdate, true))
	assert.Equal(t, []Kind{KindUpdate, KindUpdate}, q.Kinds())
}

func TestAdd_InFlightDoesNotBlockFollowUp(t *testing.T) {
	q, _ := newQueue(t)
	q.Add(KindUpdate, false)
	q.Update()
	_, ok := q.InFlight()
	require.True(t, ok)
	assert.True(t, q.Add(KindUpdate, false))
	assert.Equal(t, []Kind{KindUpdate, KindUpdate}, q.Kinds())
}

func TestSingleInFlight(t *testing.T) {
	q, f := newQueue(t)
	q.Add(KindCreate, false)
	q.Add(KindSetLocalUserData, false)
	q.Add(KindUpdate, false)

	for i := 0; i < 5; i++ {
		q.Update()
		require.LessOrEqual(t, inFlightCount(q), 1)
	}
	assert.Equal(t, []Kind{KindCreate}, f.started)

	head, _ := q.InFlight()
	out := q.Complete(head.NetID, nil)
	assert.Equal(t, ActionSucceeded, out.Action)
	assert.Equal(t, KindCreate, out.Task.Kind)
	require.Equal(t, 0, inFlightCount(q))

	q.Update()
	assert.Equal(t, []Kind{KindCreate, KindSetLocalUserData}, f.started)
	require.Equal(t, 1, inFlightCount(q))
}

func TestComplete_IgnoresStaleID(t *testing.T) {
	q, _ := newQueue(t)
	q.Add(KindQuery, false)
	q.Update()
	out := q.Complete(999, nil)
	assert.Equal(t, ActionIgnored, out.Action)
	_, ok := q.InFlight()
	assert.True(t, ok)
}

// An Update task times out twice and then succeeds; queue order is untouched.
func TestTimeoutRestartKeepsPosition(t *testing.T) {
	q, f := newQueue(t)
	q.Add(KindUpdate, false)
	q.Add(KindSessionStart, false)
	q.Add(KindQuery, false)

	for attempt := 1; attempt <= 2; attempt++ {
		q.Update()
		head, ok := q.InFlight()
		require.True(t, ok)
		require.Equal(t, KindUpdate, head.Kind)
		out := q.Complete(head.NetID, model.ErrTimeout)
		require.Equal(t, ActionRestarted, out.Action)
		require.Equal(t, []Kind{KindUpdate, KindSessionStart, KindQuery}, q.Kinds())
	}

	q.Update()
	head, _ := q.InFlight()
	require.Equal(t, 3, head.Attempts)
	out := q.Complete(head.NetID, nil)
	require.Equal(t, ActionSucceeded, out.Action)
	assert.Equal(t, []Kind{KindSessionStart, KindQuery}, q.Kinds())
	assert.Equal(t, []Kind{KindUpdate, KindUpdate, KindUpdate}, f.started)
}

func TestTimeout_FinishesWhenClosingOrOneShot(t *testing.T) {
	q, _ := newQueue(t)
	q.Add(KindQuery, false)
	q.Update()
	head, _ := q.InFlight()
	out := q.Complete(head.NetID, model.ErrTimeout)
	assert.Equal(t, ActionFailed, out.Action)
	assert.Equal(t, model.ClassTransient, out.Class)

	q.Add(KindUpdate, false)
	q.SetClosing(true)
	q.Update()
	head, _ = q.InFlight()
	out = q.Complete(head.NetID, model.ErrTimeout)
	assert.Equal(t, ActionFailed, out.Action)
	assert.Equal(t, 0, q.Len())
}

func TestTimeout_BoundedRestarts(t *testing.T) {
	q, _ := newQueue(t)
	q.Add(KindCreate, false)
	var last Outcome
	for i := 0; i < 4; i++ {
		q.Update()
		head, ok := q.InFlight()
		require.True(t, ok)
		last = q.Complete(head.NetID, model.ErrTimeout)
	}
	assert.Equal(t, ActionFailed, last.Action)
	assert.Equal(t, 3, last.Task.Restarts)
}

func TestTooManyTasks_RetriesNextTick(t *testing.T) {
	q, f := newQueue(t)
	q.Add(KindSetLocalUserData, false)
	q.Update()
	head, _ := q.InFlight()
	out := q.Complete(head.NetID, model.ErrTooManyTasks)
	assert.Equal(t, ActionRetry, out.Action)
	assert.False(t, out.Done())
	assert.Equal(t, []Kind{KindSetLocalUserData}, q.Kinds())

	f.startErr[KindSetLocalUserData] = model.ErrTooManyTasks
	assert.Empty(t, q.Update())
	_, ok := q.InFlight()
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len())

	delete(f.startErr, KindSetLocalUserData)
	q.Update()
	_, ok = q.InFlight()
	assert.True(t, ok)
}

func TestInvalidSessionIsSuccess(t *testing.T) {
	q, _ := newQueue(t)
	q.Add(KindDelete, false)
	q.Update()
	head, _ := q.InFlight()
	out := q.Complete(head.NetID, model.ErrInvalidSession)
	assert.Equal(t, ActionSucceeded, out.Action)
	assert.Equal(t, model.ClassGone, out.Class)
}

func TestHardErrorPops(t *testing.T) {
	q, _ := newQueue(t)
	q.Add(KindJoin, false)
	q.Add(KindSetLocalUserData, false)
	q.Update()
	head, _ := q.InFlight()
	out := q.Complete(head.NetID, model.ErrSessionFull)
	assert.Equal(t, ActionFailed, out.Action)
	assert.True(t, errors.Is(out.Err, model.ErrSessionFull))
	assert.Equal(t, []Kind{KindSetLocalUserData}, q.Kinds())
}

func TestStart_SkipAndFailureReportedFromUpdate(t *testing.T) {
	q, f := newQueue(t)
	f.skip[KindSessionEnd] = true
	f.startErr[KindQuery] = model.ErrInternal
	q.Add(KindSessionEnd, false)
	q.Add(KindQuery, false)
	q.Add(KindUpdate, false)

	outs := q.Update()
	require.Len(t, outs, 2)
	assert.Equal(t, ActionSkipped, outs[0].Action)
	assert.Equal(t, KindSessionEnd, outs[0].Task.Kind)
	assert.Equal(t, ActionFailed, outs[1].Action)
	assert.ErrorIs(t, outs[1].Err, model.ErrInternal)

	head, ok := q.InFlight()
	require.True(t, ok)
	assert.Equal(t, KindUpdate, head.Kind)
}

func TestCancel_NonVitalInFlightCancelsCall(t *testing.T) {
	q, f := newQueue(t)
	q.Add(KindQuery, false)
	q.Add(KindUpdate, false)
	q.Update()
	head, _ := q.InFlight()
	id := head.NetID

	q.Cancel(KindQuery)
	assert.Equal(t, []model.TaskID{id}, f.cancelled)
	assert.Equal(t, []Kind{KindUpdate}, q.Kinds())

	outs := q.Update()
	require.Len(t, outs, 1)
	assert.Equal(t, ActionCancelled, outs[0].Action)

	// The late completion of the cancelled call is ignored.
	assert.Equal(t, ActionIgnored, q.Complete(id, nil).Action)
}

func TestCancel_VitalInFlightDefersToCompletion(t *testing.T) {
	q, f := newQueue(t)
	q.Add(KindJoin, false)
	q.Add(KindUpdate, false)
	q.Update()
	head, _ := q.InFlight()

	q.CancelAll(true)
	assert.Empty(t, f.cancelled)
	assert.Equal(t, []Kind{KindJoin}, q.Kinds())
	assert.True(t, head.Cancelling)

	out := q.Complete(head.NetID, nil)
	assert.Equal(t, ActionCancelled, out.Action)
	assert.True(t, out.Done())
	assert.Equal(t, 0, q.Len())
}

func TestCancelAll_KeepsQueuedVitalUnlessAsked(t *testing.T) {
	q, _ := newQueue(t)
	q.Add(KindUpdate, false)
	q.Add(KindSessionEnd, false)
	q.Add(KindDelete, false)
	q.CancelAll(false)
	assert.Equal(t, []Kind{KindDelete}, q.Kinds())
	q.CancelAll(true)
	assert.Empty(t, q.Kinds())
}

func TestPurgeHandleTasks(t *testing.T) {
	q, _ := newQueue(t)
	q.Add(KindCreate, false)
	q.Update()
	q.Add(KindUpdate, false)
	q.Add(KindJoin, false)
	q.Add(KindQuery, false)
	q.PurgeHandleTasks()
	assert.Equal(t, []Kind{KindCreate, KindJoin}, q.Kinds())
}

func TestReset(t *testing.T) {
	q, f := newQueue(t)
	q.Add(KindUpdate, false)
	q.Update()
	head, _ := q.InFlight()
	q.SetClosing(true)
	q.Reset()
	assert.Equal(t, []model.TaskID{head.NetID}, f.cancelled)
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Closing())
}
