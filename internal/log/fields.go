// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService       = "service"
	FieldVersion       = "version"
	FieldComponent     = "component"
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldHandle        = "handle"
	FieldConn          = "conn"

	// Lifecycle fields
	FieldEvent = "event"
	FieldState = "state"
	FieldFrom  = "from"
	FieldTo    = "to"

	// Task queue fields
	FieldTask    = "task"
	FieldTaskID  = "task_id"
	FieldAttempt = "attempt"
	FieldOutcome = "outcome"

	// Packet fields
	FieldPacket = "packet"
	FieldBytes  = "bytes"
)
