// Package metrics provides Prometheus metrics collection for the trading
// engine. It defines and manages all performance, trading, and system
// metrics that are exposed via the Prometheus metrics endpoint for
// monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the trading engine.
type Metrics struct {
	// WebSocket and tick-stream metrics
	WSReconnects  prometheus.Counter // Total number of tick-stream WebSocket reconnections
	TicksReceived prometheus.Counter // Total number of ticks received

	// Feature calculation metrics
	FeatureErrors prometheus.Counter // Total number of feature calculation errors

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered

	// Entry safeguard metrics
	ReservationsAttempted prometheus.Counter // Total number of entry attempts checked by CanEnter
	ReservationsRejected  prometheus.Counter // Total number of entry attempts CanEnter denied
	ReservationsConfirmed prometheus.Counter // Total number of reservations confirmed into a position
	ReservationsSwept     prometheus.Counter // Total number of stale reservations cleared by the sweep

	// Position lifecycle metrics
	LifecycleTransitions prometheus.Counter // Total number of successful state transitions
	LifecycleRaceLosses  prometheus.Counter // Total number of zero-rows-affected transition attempts
	OpenPositions        prometheus.Gauge   // Current number of OPEN/MONITORING positions

	// Exit evaluation metrics
	ExitTriggersTotal prometheus.Counter   // Total number of EvaluateExit calls that triggered
	ExitCheckErrors   prometheus.Counter   // Total number of exit checks that errored and were skipped
	ExitEvalDuration  prometheus.Histogram // Duration of EvaluateExit calls

	// Settlement metrics
	SettlementsTotal prometheus.Counter   // Total number of windows settled
	SettlementPnL    prometheus.Histogram // Distribution of per-window settlement P&L

	// Reconciliation metrics
	ReconciliationDivergence prometheus.Counter // Total number of positions flagged as stuck/divergent by Reconcile
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for
// testing, where the default registry would collide across test runs).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		WSReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_reconnects_total",
			Help: "Total number of tick-stream WebSocket reconnections",
		}),
		TicksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticks_received_total",
			Help: "Total number of ticks received",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of feature calculation errors",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
		ReservationsAttempted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reservations_attempted_total",
			Help: "Total number of entry attempts checked by the entry safeguard",
		}),
		ReservationsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "reservations_rejected_total",
			Help: "Total number of entry attempts denied by CanEnter",
		}),
		ReservationsConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "reservations_confirmed_total",
			Help: "Total number of reservations confirmed into a position",
		}),
		ReservationsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "reservations_swept_total",
			Help: "Total number of stale reservations cleared by the sweep",
		}),
		LifecycleTransitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "Total number of successful position lifecycle transitions",
		}),
		LifecycleRaceLosses: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifecycle_race_losses_total",
			Help: "Total number of transition attempts that lost the zero-rows-affected race",
		}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "open_positions",
			Help: "Current number of OPEN/MONITORING positions",
		}),
		ExitTriggersTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "exit_triggers_total",
			Help: "Total number of EvaluateExit calls that triggered",
		}),
		ExitCheckErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "exit_check_errors_total",
			Help: "Total number of exit checks that errored and were skipped",
		}),
		ExitEvalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "exit_eval_duration_seconds",
			Help:    "Duration of EvaluateExit calls in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		SettlementsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Total number of windows settled",
		}),
		SettlementPnL: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "settlement_pnl",
			Help:    "Distribution of per-window settlement P&L",
			Buckets: prometheus.LinearBuckets(-100, 20, 11),
		}),
		ReconciliationDivergence: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_divergence_total",
			Help: "Total number of positions flagged as stuck or divergent by Reconcile",
		}),
	}
}
