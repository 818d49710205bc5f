// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nfosync_circuit_breaker_status",
		Help: "Circuit breaker state as an integer (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})

	circuitBreakerTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nfosync_circuit_breaker_trips_total",
		Help: "Total number of times a circuit breaker tripped open, by reason",
	}, []string{"name", "reason"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nfosync_circuit_breaker_state_info",
		Help: "Circuit breaker state exposed as a label (closed/open/half-open)",
	}, []string{"name", "state"})
)

// SetCircuitBreakerState records the current state as a label-valued gauge, set to 1
// for the active state and 0 for the others, so a single query can chart transitions.
func SetCircuitBreakerState(name, state string) {
	for _, s := range []string{"closed", "open", "half-open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		circuitBreakerState.WithLabelValues(name, s).Set(v)
	}
}

// SetCircuitBreakerStatus records the current state as a plain integer gauge.
func SetCircuitBreakerStatus(name string, status int) {
	circuitBreakerStatus.WithLabelValues(name).Set(float64(status))
}

// RecordCircuitBreakerTrip increments the trip counter for the given reason.
func RecordCircuitBreakerTrip(name, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	circuitBreakerTripsTotal.WithLabelValues(name, reason).Inc()
}
