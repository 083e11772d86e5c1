// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lobby

import (
	"github.com/ManuGH/lobbyd/internal/lobby/model"
	"github.com/ManuGH/lobbyd/internal/lobby/ports"
	"github.com/ManuGH/lobbyd/internal/lobby/reservation"
	"github.com/ManuGH/lobbyd/internal/lobby/vote"
)

// Stand-ins for collaborators a deployment does not wire.

type allContent struct{}

func (allContent) HasContent(uint32) bool { return true }

type nopBalancer struct{}

func (nopBalancer) OnPlayerAdded(model.ConnectionID, model.MemberData)   {}
func (nopBalancer) OnPlayerRemoved(model.ConnectionID)                   {}
func (nopBalancer) OnPlayerUpdated(model.ConnectionID, model.MemberData) {}
func (nopBalancer) TeamOf(model.ConnectionID) uint8                      { return 0 }
func (nopBalancer) Balanced() bool                                       { return true }

type nopWarnings struct{}

func (nopWarnings) Warn(string, string)             {}
func (nopWarnings) PromptPassword(model.SessionID) {}

type nopGame struct{}

func (nopGame) ApplySafeSettings()              {}
func (nopGame) ArmLoadingHint(string)           {}
func (nopGame) StartLevel(string, string) error { return nil }
func (nopGame) Connect(string) error            { return nil }

type nopSquad struct{}

func (nopSquad) OnReservationResult(reservation.Result, bool) {}
func (nopSquad) IsMember() bool                               { return false }
func (nopSquad) Leave()                                       {}

type nopPublisher struct{}

func (nopPublisher) TryPublish(string, any) bool { return true }

type emptyRotation struct{}

func (emptyRotation) Len() int             { return 0 }
func (emptyRotation) At(int) vote.Candidate { return vote.Candidate{} }

var (
	_ ports.ContentChecker = allContent{}
	_ ports.TeamBalancer   = nopBalancer{}
	_ ports.Warnings       = nopWarnings{}
	_ ports.GameHost       = nopGame{}
	_ ports.Squad          = nopSquad{}
	_ ports.Publisher      = nopPublisher{}
	_ ports.Rotation       = emptyRotation{}
)
