// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package metrics holds prometheus metrics of the etcher.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DiscoveryPages     prometheus.Counter
	ClassifiedOutputs  *prometheus.CounterVec
	ClassifierFailures prometheus.Counter
	LedgerRollbacks    prometheus.Counter
	Etchings           *prometheus.CounterVec
	Broadcasts         *prometheus.CounterVec
	RevealTicks        *prometheus.CounterVec
	PendingReveals     prometheus.Gauge

	// only init the metrics once
	initOnce sync.Once
)

// Init registers metrics in the default registry, repeated calls are no-op.
func Init() {
	initOnce.Do(initMetrics)
}

func initMetrics() {
	DiscoveryPages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etcher_discovery_pages",
			Help: "Number of utxo pages processed by discovery",
		},
	)
	ClassifiedOutputs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etcher_discovery_classified_outputs",
			Help: "Number of outputs classified by discovery",
		},
		[]string{
			"kind", // plain or tokenized
		},
	)
	ClassifierFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etcher_classifier_failures",
			Help: "Number of classifier calls that failed and defaulted to plain",
		},
	)
	LedgerRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etcher_ledger_rollbacks",
			Help: "Number of utxo sets restored to the ledger after a failed submission",
		},
	)
	Etchings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etcher_etchings",
			Help: "Number of etching requests",
		},
		[]string{
			"result", // submitted or failed
		},
	)
	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etcher_broadcasts",
			Help: "Number of transaction broadcasts",
		},
		[]string{
			"tx",     // commit, reveal, bitcoin or rune
			"result", // accepted or rejected
		},
	)
	RevealTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etcher_reveal_ticks",
			Help: "Number of pending reveal timer ticks",
		},
		[]string{
			"outcome", // not_confirmed, rejected or revealed
		},
	)
	PendingReveals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "etcher_pending_reveals",
			Help: "Number of reveals waiting for commit confirmation",
		},
	)
}
