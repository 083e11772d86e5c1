// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	require.NoError(t, (<-ch).Write(m))
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestRecordTaskOutcome(t *testing.T) {
	c := taskOutcomesTotal.WithLabelValues("update", "restarted")
	before := counterValue(t, c)
	RecordTaskOutcome("update", "restarted", 0)
	RecordTaskOutcome("update", "restarted", 20*time.Millisecond)
	assert.Equal(t, before+2, counterValue(t, c))
}

func TestSetActiveStatus_OneHot(t *testing.T) {
	SetActiveStatus("game")
	assert.Equal(t, 1.0, counterValue(t, activeStatus.WithLabelValues("game")))
	assert.Equal(t, 0.0, counterValue(t, activeStatus.WithLabelValues("lobby")))
	SetActiveStatus("lobby")
	assert.Equal(t, 0.0, counterValue(t, activeStatus.WithLabelValues("game")))
}

func TestOutcomeLabels(t *testing.T) {
	c := historyWritesTotal.WithLabelValues("memory", "failure")
	before := counterValue(t, c)
	RecordHistoryWrite("memory", errors.New("boom"))
	assert.Equal(t, before+1, counterValue(t, c))
}

func TestIncBusDropReason_DefaultsLabels(t *testing.T) {
	c := busDroppedTotal.WithLabelValues("unknown", "unknown")
	before := counterValue(t, c)
	IncBusDropReason("", "")
	assert.Equal(t, before+1, counterValue(t, c))
}

func TestPromhttpExposure(t *testing.T) {
	RecordPacket("out", "countdown_sync")
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "lobbyd_packets_total"))
	assert.True(t, strings.Contains(body, `type="countdown_sync"`))
}
