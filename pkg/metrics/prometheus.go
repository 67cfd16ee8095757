package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions     *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	openPositions prometheus.Gauge
	lastPrice     *prometheus.GaugeVec
	cycleDuration *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_decisions_total",
				Help: "Trading decisions by outcome and reason",
			},
			[]string{"symbol", "outcome", "reason"},
		),
		transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_state_transitions_total",
				Help: "Position state machine transitions",
			},
			[]string{"symbol", "from", "to"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_errors_total",
				Help: "Errors encountered by kind",
			},
			[]string{"type"},
		),
		openPositions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradepulse_open_positions",
				Help: "Number of non-idle symbol state machines",
			},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradepulse_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradepulse_cycle_duration_seconds",
				Help:    "Duration of scheduler stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// RecordDecision records one decision outcome for a symbol.
func (r *Recorder) RecordDecision(symbol, outcome, reason string) {
	r.decisions.WithLabelValues(symbol, outcome, reason).Inc()
}

// RecordTransition records a state machine transition.
func (r *Recorder) RecordTransition(symbol, from, to string) {
	r.transitions.WithLabelValues(symbol, from, to).Inc()
}

// RecordOpenPositions sets the open-position gauge.
func (r *Recorder) RecordOpenPositions(n int) {
	r.openPositions.Set(float64(n))
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordCycleDuration observes a scheduler stage duration.
func (r *Recorder) RecordCycleDuration(stage string, d time.Duration) {
	r.cycleDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
