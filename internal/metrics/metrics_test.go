// SPDX-License-Identifier: MIT

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// gaugeValue gathers the default registry and returns the value of the
// first sample of metricName matching labels, decoding the raw
// client_model protobuf the Prometheus client library exposes Gather
// results as.
func gaugeValue(t *testing.T, metricName string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != metricName {
			continue
		}
		for _, m := range fam.GetMetric() {
			if matchesLabels(m, labels) {
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", metricName, labels)
	return 0
}

func matchesLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestSetSchedulerQueueDepth_RecordsGaugeValue(t *testing.T) {
	SetSchedulerQueueDepth("urgent", 3)
	require.Equal(t, float64(3), gaugeValue(t, "nfosync_scheduler_queue_depth", map[string]string{"lane": "urgent"}))
}

func TestSetCircuitBreakerState_SetsExactlyOneActiveLabel(t *testing.T) {
	SetCircuitBreakerState("hostclient", "open")

	require.Equal(t, float64(1), gaugeValue(t, "nfosync_circuit_breaker_state_info", map[string]string{"name": "hostclient", "state": "open"}))
	require.Equal(t, float64(0), gaugeValue(t, "nfosync_circuit_breaker_state_info", map[string]string{"name": "hostclient", "state": "closed"}))
}

func TestSetLastKnownRecords_RecordsGaugeValue(t *testing.T) {
	SetLastKnownRecords("movie", 42)
	require.Equal(t, float64(42), gaugeValue(t, "nfosync_lastknown_records", map[string]string{"type": "movie"}))
}
