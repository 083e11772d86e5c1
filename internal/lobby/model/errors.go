// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"context"
	"errors"
)

// Service-level results reported by the matchmaking service.
var (
	ErrTimeout                = errors.New("operation timed out")
	ErrTooManyTasks           = errors.New("too many tasks")
	ErrInvalidSession         = errors.New("invalid session")
	ErrSessionFull            = errors.New("session full")
	ErrPasswordIncorrect      = errors.New("password incorrect")
	ErrUserNotSignedIn        = errors.New("user not signed in")
	ErrInsufficientPrivileges = errors.New("insufficient privileges")
	ErrCableNotConnected      = errors.New("cable not connected")
	ErrInternetDisabled       = errors.New("internet disabled")
	ErrNotFound               = errors.New("session not found")
	ErrUserNotInSession       = errors.New("user not in session")
	ErrConnectionFailed       = errors.New("connection failed")
	ErrInternal               = errors.New("internal error")
)

// Lobby-level errors returned by the state machine API.
var (
	ErrIllegalState   = errors.New("operation not allowed in current state")
	ErrNotHost        = errors.New("operation requires host")
	ErrSessionActive  = errors.New("session already active")
	ErrNoSession      = errors.New("no active session")
	ErrRankRestricted = errors.New("rank restricted")
	ErrContentMissing = errors.New("required content missing")
	ErrMergeConflict  = errors.New("merge conflict")
)

// ErrorClass is the retry policy bucket an error falls into.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	// ClassTransient errors restart the same task.
	ClassTransient
	// ClassExhausted errors retry next tick without advancing the queue.
	ClassExhausted
	// ClassGone means the session already disappeared; finished as success.
	ClassGone
	// ClassHard errors are surfaced and the queue advances.
	ClassHard
	// ClassSignIn errors are hard but presented less intrusively.
	ClassSignIn
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassExhausted:
		return "exhausted"
	case ClassGone:
		return "gone"
	case ClassHard:
		return "hard"
	case ClassSignIn:
		return "sign_in"
	default:
		return "unknown"
	}
}

// Classify maps a service result onto its retry class.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	case errors.Is(err, ErrTooManyTasks):
		return ClassExhausted
	case errors.Is(err, ErrInvalidSession):
		return ClassGone
	case errors.Is(err, ErrUserNotSignedIn),
		errors.Is(err, ErrInsufficientPrivileges),
		errors.Is(err, ErrCableNotConnected),
		errors.Is(err, ErrInternetDisabled):
		return ClassSignIn
	default:
		return ClassHard
	}
}

// SuccessEquivalent reports whether a result should be treated as success.
func SuccessEquivalent(err error) bool {
	c := Classify(err)
	return c == ClassNone || c == ClassGone
}
