// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package directory advertises hosted sessions in Redis so external browsers
// can list joinable lobbies. Adverts expire unless refreshed.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuGH/lobbyd/internal/bus"
	"github.com/ManuGH/lobbyd/internal/config"
	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/events"
	"github.com/ManuGH/lobbyd/internal/metrics"
	"github.com/ManuGH/lobbyd/internal/resilience"
)

const (
	opTimeout = 2 * time.Second

	fieldMembers  = "_members"
	fieldCapacity = "_capacity"
	fieldUpdated  = "_updated"
	attrPrefix    = "attr."
)

// Advert is the directory entry of one session.
type Advert struct {
	Session    string            `json:"session"`
	Attributes map[string]uint32 `json:"attributes"`
	Members    int               `json:"members"`
	Capacity   int               `json:"capacity"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Options configure an Advertiser.
type Options struct {
	KeyPrefix string
	TTL       time.Duration
}

// Advertiser mirrors lobby attribute events into Redis.
type Advertiser struct {
	client  *redis.Client
	opts    Options
	log     zerolog.Logger
	breaker *resilience.CircuitBreaker

	mu   sync.Mutex
	live map[string]struct{}
}

// Dial connects to the configured Redis and verifies it answers.
func Dial(cfg config.DirectoryConfig, logger zerolog.Logger) (*Advertiser, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to session directory")
	return New(client, Options{KeyPrefix: cfg.KeyPrefix, TTL: cfg.TTL}, logger), nil
}

func New(client *redis.Client, opts Options, logger zerolog.Logger) *Advertiser {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "lobbyd"
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	// Writes pause for one TTL after three consecutive failures.
	return &Advertiser{
		client:  client,
		opts:    opts,
		log:     logger.With().Str(xglog.FieldComponent, "directory").Logger(),
		breaker: resilience.NewCircuitBreaker("directory", 3, opts.TTL),
		live:    make(map[string]struct{}),
	}
}

func (a *Advertiser) indexKey() string { return a.opts.KeyPrefix + ":sessions" }

func (a *Advertiser) sessionKey(id string) string { return a.opts.KeyPrefix + ":session:" + id }

// Advertise writes ev and (re)arms its expiry.
func (a *Advertiser) Advertise(ctx context.Context, ev events.AttributesChanged) error {
	id := string(ev.Session)
	if id == "" {
		return errors.New("directory: advert without session id")
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	fields := map[string]any{
		fieldMembers:  ev.Members,
		fieldCapacity: ev.Capacity,
		fieldUpdated:  at.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range ev.Attributes {
		fields[attrPrefix+k] = v
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	key := a.sessionKey(id)
	err := a.breaker.Execute(func() error {
		_, err := a.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			p.HSet(ctx, key, fields)
			p.Expire(ctx, key, a.opts.TTL)
			p.SAdd(ctx, a.indexKey(), id)
			return nil
		})
		return err
	})
	metrics.RecordDirectoryOp("advertise", err)
	if err != nil {
		return fmt.Errorf("directory: advertise %s: %w", id, err)
	}
	a.mu.Lock()
	a.live[id] = struct{}{}
	a.mu.Unlock()
	return nil
}

// Withdraw removes the advert of session id.
func (a *Advertiser) Withdraw(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	err := a.breaker.Execute(func() error {
		_, err := a.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, a.sessionKey(id))
			p.SRem(ctx, a.indexKey(), id)
			return nil
		})
		return err
	})
	metrics.RecordDirectoryOp("withdraw", err)
	if err != nil {
		return fmt.Errorf("directory: withdraw %s: %w", id, err)
	}
	a.mu.Lock()
	delete(a.live, id)
	a.mu.Unlock()
	return nil
}

// Refresh extends the expiry of every advert this process owns.
func (a *Advertiser) Refresh(ctx context.Context) error {
	a.mu.Lock()
	ids := make([]string, 0, len(a.live))
	for id := range a.live {
		ids = append(ids, id)
	}
	a.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	err := a.breaker.Execute(func() error {
		_, err := a.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, id := range ids {
				p.Expire(ctx, a.sessionKey(id), a.opts.TTL)
			}
			return nil
		})
		return err
	})
	metrics.RecordDirectoryOp("refresh", err)
	return err
}

// Lookup reads one advert. It reports false when the advert expired or was
// never written.
func (a *Advertiser) Lookup(ctx context.Context, id string) (Advert, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	vals, err := a.client.HGetAll(ctx, a.sessionKey(id)).Result()
	if err != nil {
		return Advert{}, false, fmt.Errorf("directory: lookup %s: %w", id, err)
	}
	if len(vals) == 0 {
		return Advert{}, false, nil
	}
	ad, err := decode(id, vals)
	if err != nil {
		return Advert{}, false, err
	}
	return ad, true, nil
}

// List returns the live adverts, pruning index entries whose advert expired.
func (a *Advertiser) List(ctx context.Context) ([]Advert, error) {
	ids, err := a.client.SMembers(ctx, a.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("directory: list: %w", err)
	}
	var out []Advert
	for _, id := range ids {
		ad, ok, err := a.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			_ = a.client.SRem(ctx, a.indexKey(), id).Err()
			continue
		}
		out = append(out, ad)
	}
	return out, nil
}

func decode(id string, vals map[string]string) (Advert, error) {
	ad := Advert{Session: id, Attributes: make(map[string]uint32)}
	for k, v := range vals {
		var err error
		switch {
		case k == fieldMembers:
			ad.Members, err = strconv.Atoi(v)
		case k == fieldCapacity:
			ad.Capacity, err = strconv.Atoi(v)
		case k == fieldUpdated:
			ad.UpdatedAt, err = time.Parse(time.RFC3339Nano, v)
		case strings.HasPrefix(k, attrPrefix):
			var n uint64
			n, err = strconv.ParseUint(v, 10, 32)
			ad.Attributes[strings.TrimPrefix(k, attrPrefix)] = uint32(n)
		}
		if err != nil {
			return Advert{}, fmt.Errorf("directory: decode %s field %s: %w", id, k, err)
		}
	}
	return ad, nil
}

// Run mirrors the bus into Redis until ctx is done. Owned adverts are
// refreshed every half TTL and withdrawn on exit.
func (a *Advertiser) Run(ctx context.Context, b bus.Bus) error {
	attrs, err := b.Subscribe(ctx, events.TopicAttributes)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	defer attrs.Close()
	sessions, err := b.Subscribe(ctx, events.TopicSession)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	defer sessions.Close()

	ticker := time.NewTicker(a.opts.TTL / 2)
	defer ticker.Stop()
	defer a.withdrawAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				a.log.Warn().Err(err).Msg("advert refresh failed")
			}
		case msg, ok := <-attrs.C():
			if !ok {
				return nil
			}
			if ev, ok := msg.(events.AttributesChanged); ok {
				if err := a.Advertise(ctx, ev); err != nil {
					a.log.Warn().Err(err).Msg("advertise failed")
				}
			}
		case msg, ok := <-sessions.C():
			if !ok {
				return nil
			}
			if ev, ok := msg.(events.SessionClosed); ok && ev.Session != "" {
				if err := a.Withdraw(ctx, string(ev.Session)); err != nil {
					a.log.Warn().Err(err).Msg("withdraw failed")
				}
			}
		}
	}
}

func (a *Advertiser) withdrawAll() {
	a.mu.Lock()
	ids := make([]string, 0, len(a.live))
	for id := range a.live {
		ids = append(ids, id)
	}
	a.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	for _, id := range ids {
		if err := a.Withdraw(ctx, id); err != nil {
			a.log.Warn().Err(err).Str(xglog.FieldSessionID, id).Msg("withdraw on shutdown failed")
		}
	}
}

// Ping checks the Redis connection.
func (a *Advertiser) Ping(ctx context.Context) error { return a.client.Ping(ctx).Err() }

// Close releases the Redis client.
func (a *Advertiser) Close() error { return a.client.Close() }
