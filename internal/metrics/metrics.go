// Package metrics exposes prometheus counters for pipeline and stage activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values
const (
	ResultOK       = "ok"
	ResultNoop     = "noop"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics groups the service counters
type Metrics struct {
	Reconciliations   *prometheus.CounterVec
	StageTransitions  *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	ScoringFailures   prometheus.Counter
	NotifyFailures    *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

var singleton = sync.OnceValue(func() *Metrics {
	return &Metrics{
		Reconciliations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Name:      "reconciliations_total",
			Help:      "Pipeline reconciliations by collection and result.",
		}, []string{"kind", "result"}),
		StageTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "application",
			Name:      "stage_transitions_total",
			Help:      "Application stage changes by result.",
		}, []string{"result"}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "job",
			Name:      "status_transitions_total",
			Help:      "Job lifecycle actions by result.",
		}, []string{"action", "result"}),
		ScoringFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "application",
			Name:      "scoring_failures_total",
			Help:      "Scoring oracle calls that failed and were skipped.",
		}),
		NotifyFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notify",
			Name:      "publish_failures_total",
			Help:      "Notification events that could not be published.",
		}, []string{"event"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
})

// Get returns the process-wide metrics
func Get() *Metrics {
	return singleton()
}

// ResultOf maps an error to a result label
func ResultOf(err error, rejected func(error) bool) string {
	switch {
	case err == nil:
		return ResultOK
	case rejected != nil && rejected(err):
		return ResultRejected
	default:
		return ResultError
	}
}
