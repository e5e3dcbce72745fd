// Package metrics holds the Prometheus collectors shared by the priya
// pipeline. Collectors register on the default registry and are exposed by
// the keep-alive server under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CredentialAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priya_credential_attempts_total",
			Help: "Provider calls attempted per credential, by outcome",
		},
		[]string{"provider", "outcome"},
	)

	RepliesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priya_replies_delivered_total",
			Help: "Reply artifacts sent to users, by kind (text, archive, voice)",
		},
		[]string{"kind"},
	)

	SpeechTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priya_speech_tier_total",
			Help: "Speech synthesis results by tier name",
		},
		[]string{"tier", "outcome"},
	)

	AugmentLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priya_augment_lookups_total",
			Help: "Context augmentation lookups by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	UpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "priya_update_duration_seconds",
			Help:    "Time spent handling one inbound update",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"type"},
	)

	InFlightUpdates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "priya_updates_in_flight",
			Help: "Number of inbound updates currently being handled",
		},
	)
)
