// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/lobbyd/internal/bus"
	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/events"
	"github.com/ManuGH/lobbyd/internal/metrics"
)

const writeTimeout = 5 * time.Second

// Recorder writes lobby match and rotation events into a Store.
type Recorder struct {
	store Store
	log   zerolog.Logger
}

func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, log: logger.With().Str(xglog.FieldComponent, "history").Logger()}
}

// Run consumes events until ctx is done or the bus closes a subscription.
// Write failures are logged and counted; they never stop the recorder.
func (r *Recorder) Run(ctx context.Context, b bus.Bus) error {
	matches, err := b.Subscribe(ctx, events.TopicMatch)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer matches.Close()
	rotation, err := b.Subscribe(ctx, events.TopicRotation)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer rotation.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-matches.C():
			if !ok {
				return nil
			}
			r.handle(ctx, msg)
		case msg, ok := <-rotation.C():
			if !ok {
				return nil
			}
			r.handle(ctx, msg)
		}
	}
}

func (r *Recorder) handle(ctx context.Context, msg bus.Message) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	switch ev := msg.(type) {
	case events.MatchEnded:
		m, err := r.store.RecordMatch(wctx, Match{
			Session: string(ev.Session),
			Map:     ev.Map,
			Mode:    ev.Mode,
			Members: ev.Members,
			Started: ev.Started,
			Ended:   ev.Ended,
		})
		metrics.RecordHistoryWrite(r.store.Backend(), err)
		if err != nil {
			r.log.Warn().Err(err).Str(xglog.FieldSessionID, string(ev.Session)).Msg("failed to record match")
			return
		}
		r.log.Debug().Int64("match_id", m.ID).Str("map", m.Map).Str("mode", m.Mode).Msg("match recorded")
	case events.CursorAdvanced:
		err := r.store.SaveCursor(wctx, ev.Key, ev.Cursor)
		metrics.RecordHistoryWrite(r.store.Backend(), err)
		if err != nil {
			r.log.Warn().Err(err).Str("rotation_key", ev.Key).Msg("failed to save rotation cursor")
		}
	}
}
