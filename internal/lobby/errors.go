// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import "errors"

var (
	// ErrSessionLost reports an unrecoverable loss of the hosted or joined session.
	ErrSessionLost = errors.New("session lost")
	// ErrStopped is returned by Do once Run has returned.
	ErrStopped = errors.New("lobby stopped")
	// ErrVotingDisabled is returned by vote operations when voting is off.
	ErrVotingDisabled = errors.New("voting disabled")
)
