// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/lobbyd/internal/bus"
	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/events"
)

func TestRecorder_PersistsMatchesAndCursor(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := bus.NewMemoryBus()
	store := NewMemoryStore()
	rec := NewRecorder(store, xglog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx, b) }()

	require.Eventually(t, func() bool {
		return b.Subscribers(events.TopicMatch) == 1 && b.Subscribers(events.TopicRotation) == 1
	}, time.Second, 5*time.Millisecond)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.Publish(ctx, events.TopicMatch, events.MatchStarted{Session: "s", Map: "harbor", At: now}))
	require.NoError(t, b.Publish(ctx, events.TopicMatch, events.MatchEnded{
		Session: "s", Map: "harbor", Mode: "assault", Members: 4, Started: now, Ended: now.Add(10 * time.Minute),
	}))
	require.NoError(t, b.Publish(ctx, events.TopicRotation, events.CursorAdvanced{Key: "default", Cursor: 2, At: now}))

	require.Eventually(t, func() bool {
		c, ok, _ := store.LoadCursor(context.Background(), "default")
		ms, _ := store.RecentMatches(context.Background(), 0)
		return ok && c == 2 && len(ms) == 1
	}, time.Second, 5*time.Millisecond)

	ms, err := store.RecentMatches(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "harbor", ms[0].Map)
	assert.Equal(t, 4, ms[0].Members)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, b.Subscribers(events.TopicMatch))
}
