// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"time"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// MemberStatus is one roster row of a Status.
type MemberStatus struct {
	Conn           uint32 `json:"conn"`
	User           string `json:"user,omitempty"`
	Name           string `json:"name,omitempty"`
	Host           bool   `json:"host"`
	Team           uint8  `json:"team"`
	Rank           uint8  `json:"rank"`
	Skill          uint16 `json:"skill"`
	Vote           string `json:"vote"`
	FullyConnected bool   `json:"fullyConnected"`
}

type CountdownStatus struct {
	Stage     string        `json:"stage"`
	Remaining time.Duration `json:"remainingNs"`
	Initial   bool          `json:"initial"`
}

type VoteStatus struct {
	Enabled    bool   `json:"enabled"`
	Closed     bool   `json:"closed"`
	Cursor     int    `json:"cursor"`
	LeftMap    string `json:"leftMap"`
	LeftMode   string `json:"leftMode"`
	RightMap   string `json:"rightMap"`
	RightMode  string `json:"rightMode"`
	LeftVotes  int    `json:"leftVotes"`
	RightVotes int    `json:"rightVotes"`
	Winner     string `json:"winner,omitempty"`
}

// Status is an immutable view of the lobby, published after every tick.
type Status struct {
	State        model.State       `json:"state"`
	Requested    model.State       `json:"requested"`
	Active       string            `json:"activeStatus"`
	Role         model.Role        `json:"role"`
	Host         bool              `json:"host"`
	Handle       uint32            `json:"handle"`
	Session      model.SessionID   `json:"session,omitempty"`
	Migrating    bool              `json:"migrating"`
	Map          string            `json:"map,omitempty"`
	Mode         string            `json:"mode,omitempty"`
	Members      []MemberStatus    `json:"members"`
	Placeholders int               `json:"placeholders"`
	Reservations int               `json:"reservations"`
	Capacity     int               `json:"capacity"`
	Tasks        []string          `json:"tasks"`
	Countdown    CountdownStatus   `json:"countdown"`
	Vote         VoteStatus        `json:"vote"`
	Attributes   map[string]uint32 `json:"attributes"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (l *Lobby) publish() {
	st := &Status{
		State:        l.state,
		Requested:    l.requested,
		Active:       l.GetActiveStatus().String(),
		Role:         l.cfg.Role,
		Host:         l.host,
		Handle:       uint32(l.handle),
		Session:      l.session,
		Migrating:    l.migrating,
		Map:          l.match.Map,
		Mode:         l.match.Mode,
		Placeholders: l.roster.Placeholders(),
		Reservations: l.res.ValidCount(),
		Capacity:     l.cfg.Capacity(),
		Countdown: CountdownStatus{
			Stage:     l.countdown.stage.String(),
			Remaining: l.countdown.remaining,
			Initial:   l.countdown.initial,
		},
		Attributes: l.attrs.Map(),
		UpdatedAt:  l.now(),
	}
	for _, m := range l.roster.Members() {
		st.Members = append(st.Members, MemberStatus{
			Conn:           uint32(m.Conn),
			User:           string(m.User),
			Name:           m.Name,
			Host:           m.IsHost,
			Team:           m.Data.Team,
			Rank:           m.Data.Rank,
			Skill:          m.Data.Skill,
			Vote:           m.Data.Vote.String(),
			FullyConnected: m.FullyConnected,
		})
	}
	for _, k := range l.queue.Kinds() {
		st.Tasks = append(st.Tasks, string(k))
	}
	left, right := l.votes.Candidates()
	lv, rv := l.votes.Counts()
	st.Vote = VoteStatus{
		Enabled:    l.cfg.Voting.Enabled,
		Closed:     l.votes.Closed(),
		Cursor:     l.votes.Cursor(),
		LeftMap:    left.Map,
		LeftMode:   left.Mode,
		RightMap:   right.Map,
		RightMode:  right.Mode,
		LeftVotes:  lv,
		RightVotes: rv,
	}
	if res, closed := l.votes.Result(); closed {
		st.Vote.Winner = res.Winner.String()
	}
	l.published.Store(st)
}

// Snapshot returns the status published by the last tick. It is safe to
// call from any goroutine.
func (l *Lobby) Snapshot() Status {
	if st := l.published.Load(); st != nil {
		return *st
	}
	return Status{State: model.StateNone, Requested: model.StateNone}
}
