// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package vote runs the two-candidate next-map election.
package vote

import (
	"math/rand/v2"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// Candidate is one rotation entry offered in an election.
type Candidate struct {
	Map  string
	Mode string
}

// Rotation is the read-only map/mode sequence. Indexes wrap.
type Rotation interface {
	Len() int
	At(i int) Candidate
}

// Reason records how Close picked the winner.
type Reason string

const (
	ReasonCount  Reason = "count"
	ReasonLeader Reason = "leader"
	ReasonRandom Reason = "random"
	ReasonRemote Reason = "remote"
)

// Result of closing an election.
type Result struct {
	Winner model.VoteChoice
	Reason Reason
	Left   int
	Right  int
}

// Protocol holds the state of one election round. It is owned by the
// lobby goroutine.
type Protocol struct {
	rot    Rotation
	rng    *rand.Rand
	cursor int

	left, right int
	highest     int
	leader      model.VoteChoice

	closed bool
	result Result

	// remote candidates received from the host override the local rotation.
	remote      bool
	remoteLeft  Candidate
	remoteRight Candidate
}

func New(rot Rotation, rng *rand.Rand) *Protocol {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Protocol{rot: rot, rng: rng}
}

// Cursor is the index of the last applied rotation entry.
func (p *Protocol) Cursor() int { return p.cursor }

// WireCursor is the cursor reduced to the rotation length so it fits the
// 16-bit wire field. Members derive the same entries from it.
func (p *Protocol) WireCursor() uint16 {
	if p.rot == nil || p.rot.Len() == 0 {
		return 0
	}
	n := p.rot.Len()
	return uint16(((p.cursor % n) + n) % n)
}

// SetCursor restores a persisted or replicated cursor.
func (p *Protocol) SetCursor(c int) {
	p.cursor = c
	p.remote = false
}

// Candidates returns the next two rotation entries after the cursor. The
// cursor itself is not consumed until Resolve.
func (p *Protocol) Candidates() (left, right Candidate) {
	if p.remote {
		return p.remoteLeft, p.remoteRight
	}
	return p.at(p.cursor + 1), p.at(p.cursor + 2)
}

func (p *Protocol) at(i int) Candidate {
	if p.rot == nil || p.rot.Len() == 0 {
		return Candidate{}
	}
	n := p.rot.Len()
	return p.rot.At(((i % n) + n) % n)
}

// SetRemoteCandidates adopts the pair and cursor announced by the host.
func (p *Protocol) SetRemoteCandidates(cursor int, left, right Candidate) {
	p.cursor = cursor
	p.remote = true
	p.remoteLeft, p.remoteRight = left, right
}

// InvalidateCandidates drops any host-provided pair so the next call to
// Candidates derives it from the local rotation again.
func (p *Protocol) InvalidateCandidates() { p.remote = false }

// Tally recomputes counts from the members' current choices and tracks the
// side that first reached the highest leading count.
func (p *Protocol) Tally(choices []model.VoteChoice) (left, right int) {
	left, right = 0, 0
	for _, c := range choices {
		switch c {
		case model.VoteLeft:
			left++
		case model.VoteRight:
			right++
		}
	}
	p.left, p.right = left, right
	if p.closed {
		return left, right
	}
	switch {
	case left > right && left > p.highest:
		p.highest, p.leader = left, model.VoteLeft
	case right > left && right > p.highest:
		p.highest, p.leader = right, model.VoteRight
	}
	return left, right
}

// Leader returns the historical leader and its leading count.
func (p *Protocol) Leader() (model.VoteChoice, int) { return p.leader, p.highest }

// Counts returns the latest tally.
func (p *Protocol) Counts() (left, right int) { return p.left, p.right }

// Closed reports whether the round has been decided.
func (p *Protocol) Closed() bool { return p.closed }

// Result returns the decision of a closed round.
func (p *Protocol) Result() (Result, bool) { return p.result, p.closed }

// Close decides the round. Calling it again returns the first decision.
func (p *Protocol) Close() Result {
	if p.closed {
		return p.result
	}
	res := Result{Left: p.left, Right: p.right}
	switch {
	case p.left > p.right:
		res.Winner, res.Reason = model.VoteLeft, ReasonCount
	case p.right > p.left:
		res.Winner, res.Reason = model.VoteRight, ReasonCount
	case p.leader != model.VoteNone:
		res.Winner, res.Reason = p.leader, ReasonLeader
	default:
		res.Reason = ReasonRandom
		if p.rng.IntN(2) == 0 {
			res.Winner = model.VoteLeft
		} else {
			res.Winner = model.VoteRight
		}
	}
	p.closed, p.result = true, res
	return res
}

// ApplyRemoteClose records a decision announced by the host.
func (p *Protocol) ApplyRemoteClose(leftWins bool) {
	res := Result{Winner: model.VoteRight, Reason: ReasonRemote, Left: p.left, Right: p.right}
	if leftWins {
		res.Winner = model.VoteLeft
	}
	p.closed, p.result = true, res
}

// Resolve consumes the closed round and advances the cursor past both
// candidates. Left applies at cursor+1 then skips the loser; right skips the
// loser at cursor+1 then applies at cursor+2. Either way host and members
// end on the same cursor.
func (p *Protocol) Resolve() (Candidate, bool) {
	if !p.closed {
		return Candidate{}, false
	}
	left, right := p.Candidates()
	winner := left
	if p.result.Winner == model.VoteRight {
		winner = right
	}
	p.cursor += 2
	p.Reset()
	return winner, true
}

// Advance moves the cursor by one without an election and returns the
// entry now at the cursor.
func (p *Protocol) Advance() Candidate {
	p.cursor++
	p.remote = false
	return p.at(p.cursor)
}

// Current returns the entry at the cursor.
func (p *Protocol) Current() Candidate { return p.at(p.cursor) }

// Reset clears tallies and the closed flag for a new round.
func (p *Protocol) Reset() {
	p.left, p.right, p.highest = 0, 0, 0
	p.leader = model.VoteNone
	p.closed = false
	p.result = Result{}
	p.remote = false
}
