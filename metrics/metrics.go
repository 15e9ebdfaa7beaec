// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"strconv"
	"time"

	"github.com/luxfi/xbridge/types"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xbridge"

// Metrics tracks transfer and per-phase transaction results. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	transferCount       *prometheus.CounterVec
	phaseTxCount        *prometheus.CounterVec
	phaseLatencyMS      *prometheus.GaugeVec
	transfersInProgress prometheus.Gauge
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		transferCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfer_count",
				Help:      "Number of finished transfers by result",
			},
			[]string{"source_chain_id", "destination_chain_id", "result"},
		),
		phaseTxCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_tx_count",
				Help:      "Number of phase transactions by terminal status",
			},
			[]string{"phase", "chain_id", "status"},
		),
		phaseLatencyMS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "phase_latency_ms",
				Help:      "Latency from submission to resolution of the last phase transaction in milliseconds",
			},
			[]string{"phase", "chain_id"},
		),
		transfersInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transfers_in_progress",
				Help:      "Number of transfers currently being orchestrated",
			},
		),
	}

	registerer.MustRegister(m.transferCount)
	registerer.MustRegister(m.phaseTxCount)
	registerer.MustRegister(m.phaseLatencyMS)
	registerer.MustRegister(m.transfersInProgress)

	return &m
}

// ObservePhase records the terminal status of a phase and how long it took.
func (m *Metrics) ObservePhase(outcome types.PhaseOutcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	chainID := strconv.FormatUint(outcome.ChainID, 10)
	m.phaseTxCount.WithLabelValues(outcome.Phase.String(), chainID, outcome.Status.String()).Inc()
	m.phaseLatencyMS.WithLabelValues(outcome.Phase.String(), chainID).Set(float64(elapsed.Milliseconds()))
}

// ObserveTransfer records the final result of a transfer.
func (m *Metrics) ObserveTransfer(sourceChainID, destinationChainID uint64, result types.Result) {
	if m == nil {
		return
	}
	m.transferCount.WithLabelValues(
		strconv.FormatUint(sourceChainID, 10),
		strconv.FormatUint(destinationChainID, 10),
		result.String(),
	).Inc()
}

func (m *Metrics) TransferStarted() {
	if m == nil {
		return
	}
	m.transfersInProgress.Inc()
}

func (m *Metrics) TransferFinished() {
	if m == nil {
		return
	}
	m.transfersInProgress.Dec()
}
