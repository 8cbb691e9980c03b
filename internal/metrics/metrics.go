// Package metrics exposes decision table evaluation metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/decisiontables/internal/config"
	"github.com/liamcoop/decisiontables/rules"
)

// Evaluation outcomes used as label values
const (
	OutcomeMatched = "matched"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
)

// Collector owns a registry and the service's metrics.
//
// Metrics:
//   - <ns>_table_evaluations_total: evaluations by tenant, table and outcome
//   - <ns>_table_evaluation_duration_seconds: evaluation latency by tenant
//   - <ns>_table_rejections_total: tables refused at compile time, by reason
//   - <ns>_http_requests_total: API requests by method, route and status
type Collector struct {
	registry *prometheus.Registry

	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	rejectionsTotal    *prometheus.CounterVec
	requestsTotal      *prometheus.CounterVec
}

// NewCollector creates and registers all metrics. A nil registry gets a
// fresh one so tests and multiple servers do not collide.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	c := &Collector{
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "table_evaluations_total",
				Help:      "Total number of decision table evaluations",
			},
			[]string{"tenant_id", "table_id", "outcome"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "table_evaluation_duration_seconds",
				Help:      "Duration of decision table evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"tenant_id"},
		),

		rejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "table_rejections_total",
				Help:      "Total number of table definitions rejected at compile time",
			},
			[]string{"reason"},
		),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.evaluationDuration,
		c.rejectionsTotal,
		c.requestsTotal,
	)

	return c
}

// Outcome classifies an evaluation result
func Outcome(result *rules.EvaluationResult) string {
	switch {
	case result == nil || result.Error != nil:
		return OutcomeError
	case result.Matched:
		return OutcomeMatched
	default:
		return OutcomeNoMatch
	}
}

// RecordEvaluation records one table evaluation
func (c *Collector) RecordEvaluation(tenantID string, result *rules.EvaluationResult, duration time.Duration) {
	tableID := ""
	if result != nil {
		tableID = result.TableID
	}
	c.evaluationsTotal.WithLabelValues(tenantID, tableID, Outcome(result)).Inc()
	c.evaluationDuration.WithLabelValues(tenantID).Observe(duration.Seconds())
}

// RecordRejection records a table refused by the parser or a validator
func (c *Collector) RecordRejection(reason string) {
	c.rejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordRequest records one API response
func (c *Collector) RecordRequest(method, route string, status int) {
	c.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
