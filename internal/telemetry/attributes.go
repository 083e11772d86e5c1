// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by lobby spans.
const (
	SessionIDKey   = "lobby.session_id"
	HandleKey      = "lobby.handle"
	StateKey       = "lobby.state"
	HostKey        = "lobby.host"
	TaskKindKey    = "lobby.task.kind"
	TaskAttemptKey = "lobby.task.attempt"
	TaskOutcomeKey = "lobby.task.outcome"
	ErrorClassKey  = "lobby.error.class"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes describes the session a span belongs to.
func SessionAttributes(sessionID string, handle uint32, state string, host bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	attrs = append(attrs,
		attribute.Int64(HandleKey, int64(handle)),
		attribute.String(StateKey, state),
		attribute.Bool(HostKey, host),
	)
	return attrs
}

// TaskAttributes describes one task attempt.
func TaskAttributes(kind string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TaskKindKey, kind),
		attribute.Int(TaskAttemptKey, attempt),
	}
}

// OutcomeAttributes records how a task attempt ended.
func OutcomeAttributes(outcome, class string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(TaskOutcomeKey, outcome)}
	if class != "" && class != "none" {
		attrs = append(attrs, attribute.String(ErrorClassKey, class))
	}
	return attrs
}

// ErrorAttributes marks a span as failed.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
