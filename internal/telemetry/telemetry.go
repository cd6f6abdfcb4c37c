// Package telemetry exposes Prometheus collectors for the pattern feedback loop.
//
// Collectors register on a caller-supplied registerer so tests and embedded
// hosts can build as many as they need. A nil *Collectors is a valid no-op.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Strategy kinds used as the "kind" label
const (
	KindRecovery = "recovery"
	KindLearning = "learning"
)

// Collectors groups every metric emitted by patternloop
type Collectors struct {
	strategyAttempts  *prometheus.CounterVec
	strategySuccesses *prometheus.CounterVec
	strategyDuration  *prometheus.HistogramVec
	confidenceDelta   *prometheus.HistogramVec
	patternRecords    *prometheus.CounterVec
}

// New creates collectors and registers them on reg
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		strategyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patternloop",
			Name:      "strategy_attempts_total",
			Help:      "Strategy invocations by kind and strategy",
		}, []string{"kind", "strategy"}),
		strategySuccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patternloop",
			Name:      "strategy_successes_total",
			Help:      "Successful strategy invocations by kind and strategy",
		}, []string{"kind", "strategy"}),
		// Buckets: 1ms, 5ms, 10ms, 50ms, 100ms, 500ms, 1s
		strategyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "patternloop",
			Name:      "strategy_duration_seconds",
			Help:      "Strategy wall-clock duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind", "strategy"}),
		confidenceDelta: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "patternloop",
			Name:      "learning_confidence_delta",
			Help:      "Confidence change proposed by learning strategies",
			Buckets:   []float64{-0.2, -0.1, -0.05, -0.02, 0, 0.02, 0.05, 0.1, 0.2},
		}, []string{"strategy"}),
		patternRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patternloop",
			Name:      "pattern_records_total",
			Help:      "Pattern executions recorded by language",
		}, []string{"language"}),
	}

	for _, collector := range []prometheus.Collector{
		c.strategyAttempts, c.strategySuccesses, c.strategyDuration,
		c.confidenceDelta, c.patternRecords,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ObserveStrategy records one strategy invocation
func (c *Collectors) ObserveStrategy(kind, strategy string, success bool, d time.Duration) {
	if c == nil {
		return
	}
	c.strategyAttempts.WithLabelValues(kind, strategy).Inc()
	if success {
		c.strategySuccesses.WithLabelValues(kind, strategy).Inc()
	}
	c.strategyDuration.WithLabelValues(kind, strategy).Observe(d.Seconds())
}

// ObserveConfidenceDelta records the post-minus-pre confidence of an improvement
func (c *Collectors) ObserveConfidenceDelta(strategy string, delta float64) {
	if c == nil {
		return
	}
	c.confidenceDelta.WithLabelValues(strategy).Observe(delta)
}

// IncRecord counts one recorded pattern execution
func (c *Collectors) IncRecord(language string) {
	if c == nil {
		return
	}
	c.patternRecords.WithLabelValues(language).Inc()
}
