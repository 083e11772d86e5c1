// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_state_transitions_total",
		Help: "Lobby lifecycle transitions",
	}, []string{"from", "to"})

	illegalTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_illegal_transitions_total",
		Help: "Rejected lifecycle transitions by reason",
	}, []string{"from", "event", "reason"})

	tasksStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_tasks_started_total",
		Help: "Session task attempts started against the matchmaking service",
	}, []string{"kind"})

	taskOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_task_outcomes_total",
		Help: "Session task results by kind and queue action",
	}, []string{"kind", "action"}) // action=succeeded|restarted|retry|failed|cancelled|skipped

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lobbyd_task_duration_seconds",
		Help:    "Time from task start to completion",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})

	migrationPhasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_host_migration_phases_total",
		Help: "Host migration callbacks by phase",
	}, []string{"phase"}) // phase=initiate|vetoed|demote|promote|finalise|terminate|reset

	reservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_reservations_total",
		Help: "Reservation attempts by result",
	}, []string{"result"})

	votesClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_votes_closed_total",
		Help: "Closed elections by winner and reason",
	}, []string{"winner", "reason"})

	packetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_packets_total",
		Help: "Lobby packets by direction and type",
	}, []string{"direction", "type"}) // direction=in|out

	packetsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_packets_rejected_total",
		Help: "Inbound packets dropped by reason",
	}, []string{"type", "reason"}) // reason=decode|role|rate|state

	rosterSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lobbyd_roster_members",
		Help: "Confirmed roster members of the local lobby",
	})

	activeStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lobbyd_active_status",
		Help: "Advertised active status (1 for the current value)",
	}, []string{"status"})
)

// RecordTransition counts a lifecycle edge.
func RecordTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordIllegalTransition counts a rejected edge.
func RecordIllegalTransition(from, event, reason string) {
	illegalTransitionsTotal.WithLabelValues(from, event, reason).Inc()
}

// RecordTaskStart counts one task attempt.
func RecordTaskStart(kind string) {
	tasksStartedTotal.WithLabelValues(kind).Inc()
}

// RecordTaskOutcome counts a queue action and observes the attempt duration
// when the task had been started.
func RecordTaskOutcome(kind, action string, elapsed time.Duration) {
	taskOutcomesTotal.WithLabelValues(kind, action).Inc()
	if elapsed > 0 {
		taskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// RecordMigrationPhase counts a host migration callback.
func RecordMigrationPhase(phase string) {
	migrationPhasesTotal.WithLabelValues(phase).Inc()
}

// RecordReservation counts a reservation result.
func RecordReservation(result string) {
	reservationsTotal.WithLabelValues(result).Inc()
}

// RecordVoteClosed counts an election result.
func RecordVoteClosed(winner, reason string) {
	votesClosedTotal.WithLabelValues(winner, reason).Inc()
}

// RecordPacket counts a sent ("out") or accepted ("in") packet.
func RecordPacket(direction, typ string) {
	packetsTotal.WithLabelValues(direction, typ).Inc()
}

// RecordPacketRejected counts a dropped inbound packet.
func RecordPacketRejected(typ, reason string) {
	packetsRejectedTotal.WithLabelValues(typ, reason).Inc()
}

// SetRosterSize publishes the confirmed member count.
func SetRosterSize(n int) {
	rosterSize.Set(float64(n))
}

var activeStatuses = []string{"none", "lobby", "starting_game", "game", "end_game"}

// SetActiveStatus flips the one-hot active status gauge.
func SetActiveStatus(status string) {
	for _, s := range activeStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		activeStatus.WithLabelValues(s).Set(v)
	}
}
