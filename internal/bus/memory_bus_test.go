// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryBusPublishDelivers(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	require.NoError(t, b.Publish(context.Background(), "topic", "hello"))
	require.Equal(t, "hello", <-sub.C())
}

func TestMemoryBusPublishContextTimeout(t *testing.T) {
	b := NewMemoryBusWithBuffer(2)
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), "topic", i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = b.Publish(ctx, "topic", "blocked")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBusTryPublishNeverBlocks(t *testing.T) {
	b := NewMemoryBusWithBuffer(1)
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	require.True(t, b.TryPublish("topic", 1))
	require.False(t, b.TryPublish("topic", 2))
	require.Equal(t, 1, <-sub.C())
	require.True(t, b.TryPublish("nobody", 3))
}

func TestMemoryBusPublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus()
	//nolint:staticcheck // nil context is the case under test
	err := b.Publish(nil, "topic", "msg")
	require.Error(t, err)
	require.Contains(t, err.Error(), "context is nil")
}

func TestMemoryBusCloseIsIdempotent(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	require.Equal(t, 1, b.Subscribers("topic"))
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.Equal(t, 0, b.Subscribers("topic"))
	_, open := <-sub.C()
	require.False(t, open)
}

func TestMemoryBusConsumers_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := NewMemoryBus()
	var wg sync.WaitGroup
	subs := make([]Subscriber, 3)
	for i := range subs {
		sub, err := b.Subscribe(context.Background(), "events")
		require.NoError(t, err)
		subs[i] = sub
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range sub.C() {
			}
		}()
	}
	for i := 0; i < 10; i++ {
		b.TryPublish("events", i)
	}
	for _, s := range subs {
		require.NoError(t, s.Close())
	}
	wg.Wait()
}
