// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "strconv"

// SessionHandle is the volatile, service-local reference to a joined session.
// It is only valid while connected and may change across host migration.
type SessionHandle uint32

// InvalidHandle marks "no session".
const InvalidHandle SessionHandle = 0

func (h SessionHandle) Valid() bool { return h != InvalidHandle }

func (h SessionHandle) String() string { return strconv.FormatUint(uint64(h), 10) }

// SessionID is the stable identifier of a session. It survives host migration.
type SessionID string

// InvalidSessionID marks "no session".
const InvalidSessionID SessionID = ""

func (id SessionID) Valid() bool { return id != InvalidSessionID }

// ConnectionID identifies one network connection inside a session.
type ConnectionID uint32

// InvalidConnection marks an unset connection.
const InvalidConnection ConnectionID = 0

func (c ConnectionID) Valid() bool { return c != InvalidConnection }

// UserID is the optional persistent identity of a member (platform account).
type UserID string

// TaskID correlates a queued task with the single in-flight service call.
type TaskID uint32

// InvalidTaskID means no call is outstanding.
const InvalidTaskID TaskID = 0

func (id TaskID) Valid() bool { return id != InvalidTaskID }
