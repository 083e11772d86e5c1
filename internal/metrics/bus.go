// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	busPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_bus_published_total",
		Help: "Lobby events delivered on the in-memory bus by topic",
	}, []string{"topic"})

	busDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobbyd_bus_dropped_total",
		Help: "In-memory bus message drops by topic and reason",
	}, []string{"topic", "reason"})
)

// IncBusPublished records a delivered bus message.
func IncBusPublished(topic string) {
	if topic == "" {
		topic = "unknown"
	}
	busPublishedTotal.WithLabelValues(topic).Inc()
}

// IncBusDrop records a dropped bus message for the given topic.
func IncBusDrop(topic string) {
	IncBusDropReason(topic, "full")
}

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	busDroppedTotal.WithLabelValues(topic, reason).Inc()
}
