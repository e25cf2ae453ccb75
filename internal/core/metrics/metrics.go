// Package metrics exposes Prometheus instrumentation for rule enforcement.
//
// A nil *Metrics is valid and records nothing, so components take one
// optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solatis/commissar/internal/rules"
)

const namespace = "commissar"

// Evaluation results.
const (
	ResultPassed  = "passed"
	ResultFailed  = "failed"
	ResultAborted = "aborted"
)

// Save results.
const (
	SaveStored   = "stored"
	SaveRejected = "rejected"
	SaveError    = "error"
)

// Metrics holds the enforcement collectors.
type Metrics struct {
	evaluations  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	ruleFailures *prometheus.CounterVec
	saves        *prometheus.CounterVec
	reloads      *prometheus.CounterVec
	activeRules  prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Rule book evaluations by event and result.",
		}, []string{"event", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating applicable rules.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"event"}),
		ruleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_failures_total",
			Help:      "Failing rule evaluations by rule name.",
		}, []string{"rule"}),
		saves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Enforced save attempts by result.",
		}, []string{"result"}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_reloads_total",
			Help:      "Rule book reloads by result.",
		}, []string{"result"}),
		activeRules: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rules",
			Help:      "Rules in the active rule book.",
		}),
	}
}

// ObserveEvaluation records one evaluation pass.
func (m *Metrics) ObserveEvaluation(event string, card *rules.ResultCard, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := ResultPassed
	switch {
	case card.AbortEvent():
		result = ResultAborted
	case !card.Passed():
		result = ResultFailed
	}
	m.evaluations.WithLabelValues(event, result).Inc()
	m.duration.WithLabelValues(event).Observe(elapsed.Seconds())

	for _, r := range card.Errors() {
		name := r.Rule.Name
		if name == "" {
			name = "unnamed"
		}
		m.ruleFailures.WithLabelValues(name).Inc()
	}
}

// ObserveSave records the outcome of an enforced save.
func (m *Metrics) ObserveSave(result string) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(result).Inc()
}

// ObserveBook records a newly activated rule book.
func (m *Metrics) ObserveBook(book *rules.RuleBook) {
	if m == nil {
		return
	}
	m.activeRules.Set(float64(book.Len()))
}

// ObserveReload records a rule file reload attempt.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
