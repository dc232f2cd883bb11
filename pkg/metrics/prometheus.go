package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshotsTotal  *prometheus.CounterVec
	reconnectsTotal prometheus.Counter
	ordersTotal     *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastMid         *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		snapshotsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "costsim_book_snapshots_total",
				Help: "Total order book snapshots consumed from the feed",
			},
			[]string{"symbol"},
		),
		reconnectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "costsim_feed_reconnects_total",
				Help: "Total feed reconnect attempts",
			},
		),
		ordersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "costsim_orders_total",
				Help: "Total simulated orders by terminal status",
			},
			[]string{"status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "costsim_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastMid: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "costsim_last_mid_price",
				Help: "Last observed mid price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "costsim_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSnapshot counts one consumed book snapshot.
func (r *Recorder) RecordSnapshot(symbol string) {
	r.snapshotsTotal.WithLabelValues(symbol).Inc()
}

// RecordReconnect counts one feed reconnect attempt.
func (r *Recorder) RecordReconnect() {
	r.reconnectsTotal.Inc()
}

// RecordOrder counts one order reaching a terminal status.
func (r *Recorder) RecordOrder(status string) {
	r.ordersTotal.WithLabelValues(status).Inc()
}

// RecordLastMid records the last mid price for a symbol.
func (r *Recorder) RecordLastMid(symbol string, price float64) {
	r.lastMid.WithLabelValues(symbol).Set(price)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
