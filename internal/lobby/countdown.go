// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"time"

	"github.com/ManuGH/lobbyd/internal/config"
	"github.com/ManuGH/lobbyd/internal/lobby/events"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/vote"
	"github.com/ManuGH/lobbyd/internal/metrics"
)

// syncEvery is the granularity of periodic countdown broadcasts.
const syncEvery = 5 * time.Second

// countdown is the automatic match start timer. The host runs it; members
// mirror the host's CountdownSync.
//
// Stages only move forward: waiting for players, then running down to the
// balance window and holding there until the teams are balanced, then the
// final run to zero. Dropping under the player minimum resets it.
type countdown struct {
	stage     model.CountdownStage
	remaining time.Duration
	initial   bool
	lastSync  time.Duration
}

func seconds(s uint8) time.Duration { return time.Duration(s) * time.Second }

func (l *Lobby) countdownLength(initial bool) time.Duration {
	if initial {
		return l.cfg.InitialCountdown
	}
	return l.cfg.SubsequentCountdown
}

func (l *Lobby) resetCountdown(initial bool) {
	length := l.countdownLength(initial)
	l.countdown = countdown{
		stage:     model.StageWaitingForPlayers,
		remaining: length,
		initial:   initial,
		lastSync:  length,
	}
}

func (l *Lobby) tickLobby(dt time.Duration) {
	// Members tally too so a promoted host keeps the leader history.
	if l.cfg.Voting.Enabled && !l.votes.Closed() {
		l.votes.Tally(l.roster.Votes())
	}
	if !l.host {
		if l.countdown.stage == model.StageStarted && l.countdown.remaining > 0 {
			l.countdown.remaining = max(0, l.countdown.remaining-dt)
		}
		return
	}

	c := &l.countdown
	prev := c.stage
	if l.roster.Len() < l.cfg.MinPlayers {
		if c.stage != model.StageWaitingForPlayers {
			l.resetCountdown(c.initial)
			l.broadcast(l.countdownSync())
		}
		return
	}

	switch c.stage {
	case model.StageWaitingForPlayers:
		c.stage = model.StageWaitingForBalancedTeams
		if l.cfg.BalanceWindow <= 0 {
			c.stage = model.StageStarted
		}
	case model.StageWaitingForBalancedTeams:
		c.remaining -= dt
		if c.remaining <= l.cfg.BalanceWindow {
			c.remaining = l.cfg.BalanceWindow
			if l.deps.Balancer.Balanced() {
				c.stage = model.StageStarted
			}
		}
	case model.StageStarted:
		c.remaining -= dt
	}

	if c.stage == model.StageStarted {
		if l.cfg.Voting.Enabled && !l.votes.Closed() && c.remaining <= l.cfg.Voting.CloseLead {
			l.closeVote()
		}
		if c.remaining <= 0 {
			c.remaining = 0
			if err := l.startMatch(); err != nil {
				l.log.Warn().Err(err).Msg("countdown start failed")
			}
			return
		}
	}

	if c.stage != prev || c.remaining/syncEvery != c.lastSync/syncEvery {
		c.lastSync = c.remaining
		l.broadcast(l.countdownSync())
	}
}

func (l *Lobby) countdownSync() *packet.CountdownSync {
	res, closed := l.votes.Result()
	return &packet.CountdownSync{
		Stage:            l.countdown.stage,
		SecondsToBalance: config.CountdownSeconds(l.cfg.BalanceWindow),
		Initial:          l.countdown.initial,
		TimeRemaining:    config.CountdownSeconds(l.countdown.remaining),
		VotingEnabled:    l.cfg.Voting.Enabled,
		VotingClosed:     closed,
		LeftWins:         closed && res.Winner == model.VoteLeft,
	}
}

func (l *Lobby) closeVote() {
	l.votes.Tally(l.roster.Votes())
	res := l.votes.Close()
	metrics.RecordVoteClosed(res.Winner.String(), string(res.Reason))
	l.log.Info().
		Str("winner", res.Winner.String()).
		Str("reason", string(res.Reason)).
		Int("left", res.Left).
		Int("right", res.Right).
		Msg("vote closed")
	l.broadcast(l.countdownSync())
}

// resolveElection applies the closed vote to the upcoming match.
func (l *Lobby) resolveElection() {
	if !l.cfg.Voting.Enabled {
		return
	}
	if !l.votes.Closed() {
		if !l.host {
			return
		}
		l.closeVote()
	}
	winner, ok := l.votes.Resolve()
	if !ok {
		return
	}
	l.setMatch(winner)
	if l.host {
		l.publishCursor()
	}
}

func (l *Lobby) candidates() *packet.VoteCandidates {
	left, right := l.votes.Candidates()
	return &packet.VoteCandidates{
		Cursor:    l.votes.WireCursor(),
		LeftMap:   left.Map,
		LeftMode:  left.Mode,
		RightMap:  right.Map,
		RightMode: right.Mode,
	}
}

func (l *Lobby) broadcastCandidates() {
	if l.cfg.Voting.Enabled {
		l.broadcast(l.candidates())
	}
}

func (l *Lobby) setMatch(c vote.Candidate) {
	l.match.Map, l.match.Mode = c.Map, c.Mode
	l.setAttr(model.AttrMap, model.HashName(c.Map))
	l.setAttr(model.AttrMode, model.HashName(c.Mode))
}

func (l *Lobby) publishCursor() {
	l.publishEvent(events.TopicRotation, events.CursorAdvanced{
		Key:    l.cfg.RotationKey,
		Cursor: l.votes.Cursor(),
		At:     l.now(),
	})
}
