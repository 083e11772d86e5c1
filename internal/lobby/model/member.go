// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "time"

// VoteChoice is a member's current position in the next-map election.
type VoteChoice uint8

const (
	VoteNone VoteChoice = iota
	VoteLeft
	VoteRight
)

func (v VoteChoice) String() string {
	switch v {
	case VoteLeft:
		return "left"
	case VoteRight:
		return "right"
	default:
		return "none"
	}
}

// Mute flags carried in member data.
const (
	MuteVoice uint8 = 1 << iota
	MuteText
)

// MemberData is the replicated per-member profile blob.
type MemberData struct {
	Team  uint8
	Rank  uint8
	Skill uint16
	Vote  VoteChoice
	Mute  uint8
	Flags uint8
}

// MemberInfo is what the matchmaking service reports about a connection.
type MemberInfo struct {
	Conn   ConnectionID
	User   UserID
	Name   string
	IsHost bool
	Data   []byte
}

// Member is one roster entry.
type Member struct {
	Conn                ConnectionID
	User                UserID
	Name                string
	IsHost              bool
	Data                MemberData
	MustLeaveBeforeHost bool
	FullyConnected      bool
	// Placeholder entries were created from an out-of-order packet and have
	// not yet been confirmed by a join event.
	Placeholder bool
	CreatedAt   time.Time
}
