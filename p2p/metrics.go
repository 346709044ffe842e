package p2p

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Peer set
	KnownPeersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hypernova",
			Subsystem: "p2p",
			Name:      "known_peers_count",
			Help:      "Current number of registered peer nodes.",
		},
	)

	PeerRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypernova",
			Subsystem: "p2p",
			Name:      "peer_registrations_total",
			Help:      "Peer registration attempts, labeled by outcome.",
		},
		[]string{"outcome"}, // added, updated, rejected_capacity, rejected_invalid
	)

	// Block propagation
	WebsocketClientsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hypernova",
			Subsystem: "p2p",
			Name:      "websocket_clients_count",
			Help:      "Current number of websocket block subscribers.",
		},
	)

	BlocksBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypernova",
			Subsystem: "p2p",
			Name:      "blocks_broadcast_total",
			Help:      "Block deliveries to subscribers and peers, labeled by transport and outcome.",
		},
		[]string{"transport", "outcome"}, // transport: websocket, http
	)

	// Production
	BlocksProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypernova",
			Subsystem: "p2p",
			Name:      "blocks_produced_total",
			Help:      "Block production rounds, labeled by outcome.",
		},
		[]string{"outcome"}, // committed, skipped, failed
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypernova",
			Subsystem: "p2p",
			Name:      "api_requests_total",
			Help:      "Ledger API submissions, labeled by endpoint and HTTP status.",
		},
		[]string{"endpoint", "status"},
	)
)
