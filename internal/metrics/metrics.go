// Package metrics exposes prometheus/client_golang gauges and counters for
// the rollup core's long-lived tasks. This is ambient observability, not a
// spec component: nothing in domain logic reads these back, and a disabled
// or unreachable metrics endpoint never affects correctness. Grounded on
// jeongkyun-oh-klaytn's use of client_golang for node metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rollupcore"

var (
	// MempoolSize is the number of operations currently held in Mempool,
	// by kind (priority vs wallet-submitted).
	MempoolSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "size",
		Help:      "Number of operations currently queued in the mempool.",
	}, []string{"kind"})

	// BlocksBuilt counts rollup blocks BlockBuilder has sealed.
	BlocksBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "blockbuilder",
		Name:      "blocks_built_total",
		Help:      "Total number of rollup blocks sealed.",
	})

	// SubmitterInFlight is the number of SubmitterOperation rows currently
	// dispatched to the anchor chain and awaiting confirmation.
	SubmitterInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ethsender",
		Name:      "in_flight",
		Help:      "Number of submitter operations currently in flight on the anchor chain.",
	})

	// SubmitterConfirmed counts submitter operations confirmed, by kind.
	SubmitterConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ethsender",
		Name:      "confirmed_total",
		Help:      "Total number of submitter operations confirmed on the anchor chain.",
	}, []string{"kind"})

	// SubmitterStuckSupplements counts gas-price bumps issued for rows
	// that missed their expected deadline block.
	SubmitterStuckSupplements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ethsender",
		Name:      "stuck_supplements_total",
		Help:      "Total number of gas-price supplements issued for stuck submitter operations.",
	})

	// EventCursorLag is the difference between the anchor chain's current
	// block and the persisted event cursor, in blocks.
	EventCursorLag = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "eventsource",
		Name:      "cursor_lag_blocks",
		Help:      "Number of blocks between the anchor chain tip and the persisted event cursor.",
	})

	// PriorityOpsObserved counts priority operations (Deposit, FullExit)
	// emitted by EventSource, by kind.
	PriorityOpsObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "eventsource",
		Name:      "priority_ops_observed_total",
		Help:      "Total number of priority operations emitted from the anchor chain.",
	}, []string{"kind"})
)

// Handler returns the HTTP handler serving the registered metrics in the
// default prometheus registry, suitable for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
