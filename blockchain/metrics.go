package blockchain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BlocksCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hypernova",
			Subsystem: "ledger",
			Name:      "blocks_committed_total",
			Help:      "Total number of blocks persisted and published, genesis included.",
		},
	)

	BlocksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypernova",
			Subsystem: "ledger",
			Name:      "blocks_rejected_total",
			Help:      "Total number of blocks rejected by AddBlock, labeled by error kind.",
		},
		[]string{"kind"},
	)

	TransactionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypernova",
			Subsystem: "ledger",
			Name:      "transactions_submitted_total",
			Help:      "Total number of transactions submitted, labeled by outcome.",
		},
		[]string{"outcome"}, // accepted, rejected
	)

	ChainHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hypernova",
			Subsystem: "ledger",
			Name:      "chain_height",
			Help:      "Height of the latest committed block.",
		},
	)

	PendingTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hypernova",
			Subsystem: "ledger",
			Name:      "pending_transactions",
			Help:      "Number of transactions waiting in the pending pool.",
		},
	)
)
