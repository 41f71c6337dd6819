package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec
	toolRetriesTotal      *prometheus.CounterVec
	rateLimitedTotal      *prometheus.CounterVec
	registeredTools       prometheus.Gauge

	compositeExecutionTotal    *prometheus.CounterVec
	compositeExecutionDuration *prometheus.HistogramVec
	compositeStepsSkipped      *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Total failed tool executions by tool and error code.",
				},
				[]string{"tool", "code"},
			),
			toolRetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_retries_total",
					Help: "Total retry attempts by tool.",
				},
				[]string{"tool"},
			),
			rateLimitedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_rate_limited_total",
					Help: "Total calls rejected by the rate limiter by tool.",
				},
				[]string{"tool"},
			),
			registeredTools: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "registered_tools",
					Help: "Current number of registered tools.",
				},
			),
			compositeExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "composite_execution_total",
					Help: "Total composite plan executions by mode and status.",
				},
				[]string{"mode", "status"},
			),
			compositeExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "composite_execution_duration_seconds",
					Help:    "Composite plan execution duration in seconds by mode.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"mode"},
			),
			compositeStepsSkipped: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "composite_steps_skipped_total",
					Help: "Total composite steps skipped by their condition, by tool.",
				},
				[]string{"tool"},
			),
		}

		prometheus.MustRegister(
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.toolRetriesTotal,
			m.rateLimitedTotal,
			m.registeredTools,
			m.compositeExecutionTotal,
			m.compositeExecutionDuration,
			m.compositeStepsSkipped,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler serves the default prometheus registry
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordToolExecution records one finished pipeline call. code is empty on success.
func RecordToolExecution(tool string, duration time.Duration, code string) {
	m := getMetrics()
	success := code == ""
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool, code).Inc()
	}
}

func RecordToolRetry(tool string) {
	getMetrics().toolRetriesTotal.WithLabelValues(tool).Inc()
}

func RecordRateLimited(tool string) {
	getMetrics().rateLimitedTotal.WithLabelValues(tool).Inc()
}

func SetRegisteredTools(count int) {
	getMetrics().registeredTools.Set(float64(count))
}

func RecordCompositeExecution(parallel bool, duration time.Duration, success bool) {
	m := getMetrics()
	mode := "sequential"
	if parallel {
		mode = "parallel"
	}
	m.compositeExecutionTotal.WithLabelValues(mode, statusLabel(success)).Inc()
	m.compositeExecutionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func RecordCompositeStepSkipped(tool string) {
	getMetrics().compositeStepsSkipped.WithLabelValues(tool).Inc()
}
