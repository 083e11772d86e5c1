// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus is the in-process pub/sub used to fan lobby events out to
// the history recorder, the discovery directory and the admin API.
package bus

import "context"

// Message is any published value.
type Message = any

// Bus publishes to and subscribes from named topics.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	TryPublish(topic string, msg Message) bool
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// Subscriber is one subscription. C is closed by Close.
type Subscriber interface {
	C() <-chan Message
	Close() error
}
