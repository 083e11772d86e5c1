// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/lobbyd/internal/directory"
	"github.com/ManuGH/lobbyd/internal/history"
	xglog "github.com/ManuGH/lobbyd/internal/log"
	"github.com/ManuGH/lobbyd/internal/lobby"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

const (
	defaultMatchLimit = 20
	maxMatchLimit     = 200
	maxBodyBytes      = 4 << 10
)

type createRequest struct {
	Map         string `json:"map"`
	Mode        string `json:"mode"`
	Matchmaking bool   `json:"matchmaking"`
}

type joinRequest struct {
	Session  string `json:"session"`
	Password string `json:"password"`
}

type leaveRequest struct {
	ForceRelease bool `json:"forceRelease"`
}

type acceptedResponse struct {
	Accepted bool        `json:"accepted"`
	State    model.State `json:"state"`
}

// do runs fn on the lobby goroutine and writes the outcome.
func (s *Server) do(w http.ResponseWriter, r *http.Request, action string, fn func(*lobby.Lobby) error) {
	ctx, cancel := context.WithTimeout(r.Context(), doTimeout)
	defer cancel()

	var opErr error
	var state model.State
	if err := s.deps.Lobby.Do(ctx, func(l *lobby.Lobby) {
		opErr = fn(l)
		state = l.State()
	}); err != nil {
		writeLobbyError(w, err)
		return
	}
	logger := xglog.WithContext(r.Context(), s.log)
	if opErr != nil {
		logger.Info().Err(opErr).Str("action", action).Msg("admin action rejected")
		writeLobbyError(w, opErr)
		return
	}
	logger.Info().Str("action", action).Str(xglog.FieldState, string(state)).Msg("admin action accepted")
	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true, State: state})
}

// decode reads an optional JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Lobby.Snapshot())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Map == "" || req.Mode == "" {
		writeBadRequest(w, "map and mode are required")
		return
	}
	s.do(w, r, "create", func(l *lobby.Lobby) error {
		return l.FindGame(lobby.CreateRequest{Map: req.Map, Mode: req.Mode, Matchmaking: req.Matchmaking})
	})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Session == "" {
		writeBadRequest(w, "session is required")
		return
	}
	s.do(w, r, "join", func(l *lobby.Lobby) error {
		return l.JoinSessionWithPassword(model.SessionID(req.Session), req.Password)
	})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := decode(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.do(w, r, "leave", func(l *lobby.Lobby) error {
		l.LeaveSession(req.ForceRelease)
		return nil
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, "start", (*lobby.Lobby).StartMatch)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, "end", (*lobby.Lobby).EndMatch)
}

func (s *Server) handleCloseVote(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, "close_vote", (*lobby.Lobby).CloseVoting)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeServiceUnavailable(w, "match history disabled")
		return
	}
	limit := defaultMatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxMatchLimit)
	}
	matches, err := s.deps.History.RecentMatches(r.Context(), limit)
	if err != nil {
		s.log.Warn().Err(err).Msg("history query failed")
		writeServiceUnavailable(w, "history query failed")
		return
	}
	if matches == nil {
		matches = []history.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Directory == nil {
		writeServiceUnavailable(w, "directory disabled")
		return
	}
	adverts, err := s.deps.Directory.List(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("directory list failed")
		writeServiceUnavailable(w, "directory list failed")
		return
	}
	if adverts == nil {
		adverts = []directory.Advert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": adverts})
}
