package consensus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttestationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypernova",
			Subsystem: "consensus",
			Name:      "attestation_requests_total",
			Help:      "Total oracle attestation requests, labeled by oracle kind and outcome.",
		},
		[]string{"oracle", "outcome"}, // oracle: http, local; outcome: ok, error
	)

	BlockValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypernova",
			Subsystem: "consensus",
			Name:      "block_validations_total",
			Help:      "Total consensus policy checks, labeled by engine and outcome.",
		},
		[]string{"engine", "outcome"}, // outcome: accepted, rejected
	)

	ElectedValidators = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hypernova",
			Subsystem: "consensus",
			Name:      "elected_validators",
			Help:      "Number of validators in the current DPoS roster.",
		},
	)
)
