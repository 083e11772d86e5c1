// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"fmt"

	"github.com/ManuGH/lobbyd/internal/lobby/events"
	"github.com/ManuGH/lobbyd/internal/lobby/lifecycle"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
	"github.com/ManuGH/lobbyd/internal/lobby/taskqueue"
)

// FindGame starts hosting a new session.
func (l *Lobby) FindGame(req CreateRequest) error {
	if l.handle.Valid() {
		return model.ErrSessionActive
	}
	if err := l.request(lifecycle.EvFindGame); err != nil {
		return err
	}
	l.createReq = req
	l.rejoinTarget = model.InvalidSessionID
	l.queue.Add(taskqueue.KindCreate, false)
	return nil
}

// JoinSession joins an existing session.
func (l *Lobby) JoinSession(target model.SessionID) error {
	return l.JoinSessionWithPassword(target, "")
}

// JoinSessionWithPassword retries a join after the password prompt.
func (l *Lobby) JoinSessionWithPassword(target model.SessionID, password string) error {
	if !target.Valid() {
		return fmt.Errorf("join: %w", model.ErrNoSession)
	}
	if l.handle.Valid() {
		return model.ErrSessionActive
	}
	if t, ok := l.queue.InFlight(); ok && t.Kind == taskqueue.KindCreate {
		return fmt.Errorf("join while creating: %w", model.ErrIllegalState)
	}
	switch l.requested {
	case model.StateNone:
		if err := l.request(lifecycle.EvFindGame); err != nil {
			return err
		}
	case model.StateFindGame:
		l.queue.Cancel(taskqueue.KindCreate)
	default:
		return fmt.Errorf("join from %s: %w", l.requested, model.ErrIllegalState)
	}
	l.pendingJoin = target
	l.joinPassword = password
	l.queue.Add(taskqueue.KindJoin, false)
	return nil
}

// StartMatch starts the match now instead of waiting for the countdown.
func (l *Lobby) StartMatch() error {
	if !l.host {
		return model.ErrNotHost
	}
	return l.startMatch()
}

func (l *Lobby) startMatch() error {
	if l.requested != model.StateLobby {
		return fmt.Errorf("start from %s: %w", l.requested, model.ErrIllegalState)
	}
	if err := l.checkRank(); err != nil {
		return err
	}
	l.resolveElection()
	return l.request(lifecycle.EvStartMatch)
}

// checkRank gates match start on the member ranks; a failure leaves the session.
func (l *Lobby) checkRank() error {
	members := l.roster.Members()
	if !l.host {
		members = []model.Member{{Conn: l.localConn, Data: l.localData}}
	}
	for _, m := range members {
		if l.deps.Rank.Allowed(m.Data.Rank) {
			continue
		}
		l.log.Warn().Uint32("conn", uint32(m.Conn)).Uint8("rank", m.Data.Rank).Msg("rank restriction failed")
		l.warnUser(ports.WarnRankRestricted, fmt.Sprintf("%d", m.Data.Rank))
		l.leaveWith(false, "rank_restricted")
		return model.ErrRankRestricted
	}
	return nil
}

// EndMatch finishes a hosted match.
func (l *Lobby) EndMatch() error {
	if !l.host {
		return model.ErrNotHost
	}
	if err := l.request(lifecycle.EvEndMatch); err != nil {
		return err
	}
	l.broadcast(&packet.GameEnded{})
	l.queue.Add(taskqueue.KindSessionEnd, false)
	l.publishEvent(events.TopicMatch, events.MatchEnded{
		Session: l.session,
		Map:     l.match.Map,
		Mode:    l.match.Mode,
		Members: l.roster.Len(),
		Started: l.match.Started,
		Ended:   l.now(),
	})
	return nil
}

// Profile is the locally editable part of the member data.
type Profile struct {
	Team  uint8
	Rank  uint8
	Skill uint16
	Mute  uint8
	Flags uint8
}

// SetLocalProfile replicates the local profile to the other members.
func (l *Lobby) SetLocalProfile(p Profile) {
	l.localData.Team = p.Team
	l.localData.Rank = p.Rank
	l.localData.Skill = p.Skill
	l.localData.Mute = p.Mute
	l.localData.Flags = p.Flags
	l.syncLocalData()
}

// SetLocalVote records the local vote. It travels with the member data.
func (l *Lobby) SetLocalVote(choice model.VoteChoice) error {
	if !l.cfg.Voting.Enabled {
		return ErrVotingDisabled
	}
	if l.requested != model.StateLobby {
		return fmt.Errorf("vote in %s: %w", l.requested, model.ErrIllegalState)
	}
	if l.votes.Closed() {
		return fmt.Errorf("vote closed: %w", model.ErrIllegalState)
	}
	l.localData.Vote = choice
	l.syncLocalData()
	return nil
}

func (l *Lobby) syncLocalData() {
	if l.localConn.Valid() {
		l.roster.Update(l.localConn, l.localData)
	}
	if l.handle.Valid() {
		l.queue.Add(taskqueue.KindSetLocalUserData, false)
	}
}

// CloseVoting closes the election ahead of the countdown.
func (l *Lobby) CloseVoting() error {
	if !l.cfg.Voting.Enabled {
		return ErrVotingDisabled
	}
	if !l.host {
		return model.ErrNotHost
	}
	if l.requested != model.StateLobby {
		return fmt.Errorf("close vote in %s: %w", l.requested, model.ErrIllegalState)
	}
	l.closeVote()
	return nil
}
