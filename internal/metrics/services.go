// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	historyWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_history_writes_total",
		Help: "Match history store writes by backend and outcome",
	}, []string{"backend", "outcome"}) // outcome=success|failure

	directoryAdvertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_directory_adverts_total",
		Help: "Discovery directory operations by operation and outcome",
	}, []string{"op", "outcome"}) // op=advertise|withdraw|refresh

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_config_reloads_total",
		Help: "Configuration hot reloads by outcome",
	}, []string{"outcome"})

	apiRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_api_rate_limited_total",
		Help: "Admin API requests rejected by the rate limiter",
	}, []string{"path"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lobbyd_circuit_breaker_state",
		Help: "Circuit breaker state per component (1 for the current state)",
	}, []string{"component", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_circuit_breaker_trips_total",
		Help: "Circuit breaker trips by component and reason",
	}, []string{"component", "reason"})
)

var breakerStates = []string{"closed", "open", "half-open"}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordHistoryWrite counts a store write.
func RecordHistoryWrite(backend string, err error) {
	historyWritesTotal.WithLabelValues(backend, outcome(err)).Inc()
}

// RecordDirectoryOp counts a directory advertise or withdraw.
func RecordDirectoryOp(op string, err error) {
	directoryAdvertsTotal.WithLabelValues(op, outcome(err)).Inc()
}

// RecordConfigReload counts a hot reload attempt.
func RecordConfigReload(err error) {
	configReloadsTotal.WithLabelValues(outcome(err)).Inc()
}

// IncAPIRateLimited counts a throttled admin request.
func IncAPIRateLimited(path string) {
	apiRateLimitedTotal.WithLabelValues(path).Inc()
}

// SetCircuitBreakerState marks state as current for component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		circuitBreakerState.WithLabelValues(component, s).Set(v)
	}
}

func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}
