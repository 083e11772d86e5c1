// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"fmt"

	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby/events"
	"github.com/ManuGH/lobbyd/internal/lobby/lifecycle"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/packet"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
	"github.com/ManuGH/lobbyd/internal/lobby/taskqueue"
	"github.com/ManuGH/lobbyd/internal/metrics"
)

const maxTransitionsPerTick = 16

// request latches a transition. It is validated against the latest
// requested state so that several requests within one tick chain up; the
// transitions themselves run in drainLatch.
func (l *Lobby) request(ev lifecycle.EventKind) error {
	to, err := lifecycle.Next(l.requested, ev)
	if err != nil {
		metrics.RecordIllegalTransition(string(l.requested), string(ev), lifecycle.ForbiddenTransitionReason(l.requested, ev))
		l.log.Debug().Err(err).Str(xglog.FieldEvent, string(ev)).Msg("transition rejected")
		return err
	}
	l.requested = to
	l.pending = append(l.pending, ev)
	l.stateChanged = true
	return nil
}

func (l *Lobby) drainLatch() {
	for i := 0; l.stateChanged && i < maxTransitionsPerTick; i++ {
		evs := l.pending
		l.pending = nil
		l.stateChanged = false
		for _, ev := range evs {
			to, err := lifecycle.Next(l.state, ev)
			if err != nil {
				l.log.Error().Err(err).Msg("latched transition no longer valid")
				continue
			}
			from := l.state
			l.state = to
			l.enter(from, to, ev)
		}
	}
}

func (l *Lobby) enter(from, to model.State, ev lifecycle.EventKind) {
	metrics.RecordTransition(string(from), string(to))
	status := model.ActiveStatusFor(to)
	metrics.SetActiveStatus(status.String())
	l.setAttr(model.AttrActiveStatus, uint32(status))
	l.log.Info().
		Str(xglog.FieldFrom, string(from)).
		Str(xglog.FieldTo, string(to)).
		Str(xglog.FieldEvent, string(ev)).
		Bool("host", l.host).
		Msg("lobby state changed")
	l.publishEvent(events.TopicState, events.StateChanged{
		Session: l.session, From: from, To: to, Host: l.host, At: l.now(),
	})

	switch to {
	case model.StateInitializing:
		l.enterInitializing()
	case model.StateLobby:
		l.enterLobby(from)
	case model.StateJoinSession:
		l.enterJoinSession()
	case model.StateGame:
		l.enterGame()
	case model.StateGameEnded:
		l.joinInfo = nil
		_ = l.request(lifecycle.EvPostGame)
	case model.StatePostGame:
		l.enterPostGame()
	case model.StateNone:
		l.enterNone()
	}
}

func (l *Lobby) enterInitializing() {
	l.attrs.Reset()
	l.setAttr(model.AttrVersion, l.cfg.GameVersion)
	l.setAttr(model.AttrPlaylist, l.cfg.Playlist)
	l.setAttr(model.AttrVariant, l.cfg.Variant)
	l.setAttr(model.AttrRequiredContent, l.cfg.RequiredContent)
	l.setAttr(model.AttrLanguage, l.cfg.Language)
	l.setAttr(model.AttrActiveStatus, uint32(model.ActiveStatusLobby))

	l.queue.Add(taskqueue.KindSetLocalUserData, false)
	if l.host {
		initial := l.votes.Current()
		if l.createReq.Map != "" {
			initial.Map, initial.Mode = l.createReq.Map, l.createReq.Mode
		}
		l.setMatch(initial)
		l.refreshSkill()
		l.resetCountdown(true)
		l.attrsDirty = true
	} else {
		l.queue.Add(taskqueue.KindQuery, false)
		l.sendToHost(&packet.ReservationIdentify{Conn: l.localConn})
	}
	l.best.reset(l.now(), l.cfg.BestHost.Interval)
	l.armBestHost(cooldownJoin, l.cfg.BestHost.AfterJoin)
	_ = l.request(lifecycle.EvInitialized)
}

func (l *Lobby) enterLobby(from model.State) {
	if l.localData.Vote != model.VoteNone {
		l.localData.Vote = model.VoteNone
		l.roster.Update(l.localConn, l.localData)
		l.queue.Add(taskqueue.KindSetLocalUserData, false)
	}
	if from == model.StatePostGame {
		l.armBestHost(cooldownReturn, l.cfg.BestHost.AfterReturnToLobby)
	}
	if !l.host {
		l.sendToHost(&packet.RequestCountdownSync{})
		l.followStart()
		return
	}
	l.resetCountdown(from == model.StateInitializing)
	l.broadcastCandidates()
	l.broadcast(l.countdownSync())
}

func (l *Lobby) enterJoinSession() {
	l.armBestHost(cooldownStart, l.cfg.BestHost.AfterStart)
	if l.host && l.cfg.Dedicated.Provisioned && l.dedicatedAddr == "" {
		l.queue.Add(taskqueue.KindDedicatedSetup, false)
	}
	l.queue.Add(taskqueue.KindSessionStart, false)
}

func (l *Lobby) enterGame() {
	l.deps.Game.ApplySafeSettings()
	l.deps.Game.ArmLoadingHint(l.match.Map)
	l.match.Started = l.now()

	if !l.host {
		addr := ""
		if l.joinInfo != nil {
			addr = l.joinInfo.Server
		}
		if addr == "" {
			addr = l.dedicatedAddr
		}
		if err := l.deps.Game.Connect(addr); err != nil {
			l.log.Error().Err(err).Str("address", addr).Msg("connect to game server failed")
			l.reportFailure(ports.WarnJoinFailed, "connect", err)
			l.leaveWith(false, "connect_failed")
		}
		return
	}

	l.broadcast(&packet.GameHasStarted{})
	l.broadcast(l.joinGame())
	l.publishEvent(events.TopicMatch, events.MatchStarted{
		Session: l.session, Map: l.match.Map, Mode: l.match.Mode, Members: l.roster.Len(), At: l.match.Started,
	})
	if err := l.deps.Game.StartLevel(l.match.Map, l.match.Mode); err != nil {
		l.log.Error().Err(err).Str("map", l.match.Map).Msg("start level failed")
		l.reportFailure(ports.WarnTaskFailed, "start_level", err)
	}
}

func (l *Lobby) enterPostGame() {
	if l.host && !l.cfg.Voting.Enabled {
		l.setMatch(l.votes.Advance())
		l.publishCursor()
	}
	l.remoteStarted = false
	l.votes.Reset()
	l.roster.ResetVotes()
	_ = l.request(lifecycle.EvReturnToLobby)
}

func (l *Lobby) enterNone() {
	l.attrs.Reset()
	l.attrsDirty = false
	l.localData.Vote = model.VoteNone
	l.createReq = CreateRequest{}
	l.formedByMatchmaking = false
	l.queue.SetClosing(false)
	l.resetCountdown(true)
	metrics.SetRosterSize(0)
}

func (l *Lobby) tickPreGame() {
	required := l.attrs.Get(model.AttrRequiredContent)
	if !l.deps.Content.HasContent(required) {
		l.log.Warn().Uint32("required", required).Msg("required content missing")
		l.warnUser(ports.WarnContentMissing, fmt.Sprintf("%#x", required))
		l.leaveWith(false, "content_missing")
		return
	}
	if l.requested != model.StatePreGame {
		return
	}
	if l.host || l.joinInfo != nil {
		_ = l.request(lifecycle.EvEnterGame)
	}
}

func (l *Lobby) joinGame() *packet.JoinGame {
	return &packet.JoinGame{Map: l.match.Map, Mode: l.match.Mode, Server: l.dedicatedAddr}
}
