// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/lobbyd/internal/lobby"
	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

// apiError is the JSON error body.
type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, apiError{Error: "bad_request", Detail: detail})
}

func writeServiceUnavailable(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "unavailable", Detail: detail})
}

// statusFor maps lobby errors onto HTTP statuses and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotHost):
		return http.StatusForbidden, "not_host"
	case errors.Is(err, model.ErrSessionActive):
		return http.StatusConflict, "session_active"
	case errors.Is(err, model.ErrNoSession):
		return http.StatusConflict, "no_session"
	case errors.Is(err, lobby.ErrVotingDisabled):
		return http.StatusConflict, "voting_disabled"
	case errors.Is(err, model.ErrIllegalState):
		return http.StatusConflict, "illegal_state"
	case errors.Is(err, model.ErrRankRestricted):
		return http.StatusUnprocessableEntity, "rank_restricted"
	case errors.Is(err, model.ErrContentMissing):
		return http.StatusUnprocessableEntity, "content_missing"
	case errors.Is(err, model.ErrMergeConflict):
		return http.StatusConflict, "merge_conflict"
	case errors.Is(err, lobby.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeLobbyError(w http.ResponseWriter, err error) {
	code, name := statusFor(err)
	writeJSON(w, code, apiError{Error: name, Detail: err.Error()})
}
