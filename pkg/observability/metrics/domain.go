package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes.
const (
	SearchOutcomeOK       = "ok"
	SearchOutcomeRejected = "rejected"
	SearchOutcomeError    = "error"
)

// Opinion kinds recorded by the rating ledger.
const (
	OpinionKindAdd      = "add"
	OpinionKindRevise   = "revise"
	OpinionKindRejected = "rejected"
)

var (
	searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorhub_search_requests_total",
			Help: "Total number of entity searches by outcome",
		},
		[]string{"entity", "outcome"},
	)

	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutorhub_search_duration_seconds",
			Help:    "Entity search duration in seconds, validation included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	ledgerOpinionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorhub_ledger_opinions_total",
			Help: "Total number of opinions handled by the rating ledger",
		},
		[]string{"kind"},
	)
)

// RecordSearch records one search call.
func RecordSearch(entity, outcome string, duration time.Duration) {
	searchRequestsTotal.WithLabelValues(entity, outcome).Inc()
	searchDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

// RecordOpinion counts one ledger write or rejection.
func RecordOpinion(kind string) {
	ledgerOpinionsTotal.WithLabelValues(kind).Inc()
}
