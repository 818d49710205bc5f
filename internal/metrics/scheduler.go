// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schedulerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nfosync_scheduler_queue_depth",
		Help: "Current urgent/patient scheduler queue depth.",
	}, []string{"lane"})

	actionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nfosync_action_total",
		Help: "Action completions by type and outcome (done, suspended, failed).",
	}, []string{"type", "outcome"})

	lastKnownRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nfosync_lastknown_records",
		Help: "In-memory LastKnownStore record count per media type.",
	}, []string{"type"})
)

// SetSchedulerQueueDepth records lane's current length.
func SetSchedulerQueueDepth(lane string, depth int) {
	schedulerQueueDepth.WithLabelValues(lane).Set(float64(depth))
}

// IncActionOutcome records one Action completion of the given outcome.
func IncActionOutcome(actionType, outcome string) {
	actionTotal.WithLabelValues(actionType, outcome).Inc()
}

// SetLastKnownRecords records the current in-memory record count for a media type.
func SetLastKnownRecords(mediaType string, count int) {
	lastKnownRecords.WithLabelValues(mediaType).Set(float64(count))
}
