// Package metrics defines the Prometheus instruments for the analysis
// orchestrator. Import for side effects; instruments register on the
// default registry and are served by the admin mux.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabularis_sessions_started_total",
			Help: "Total number of analysis sessions started",
		},
	)

	SessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabularis_sessions_completed_total",
			Help: "Total number of analysis sessions completed",
		},
		[]string{"output_kind"},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabularis_session_duration_seconds",
			Help:    "End-to-end session duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StagesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabularis_stages_executed_total",
			Help: "Total number of stage executions",
		},
		[]string{"stage", "status"},
	)

	LoopExhaustions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabularis_loop_exhaustions_total",
			Help: "Times a bounded loop hit its budget",
		},
		[]string{"loop"}, // alignment, code, remediation
	)

	// Oracle metrics
	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabularis_oracle_requests_total",
			Help: "Reasoning service requests by stage and outcome",
		},
		[]string{"stage", "status"},
	)

	OracleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabularis_oracle_latency_seconds",
			Help:    "Reasoning service request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	OracleSchemaViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabularis_oracle_schema_violations_total",
			Help: "Oracle responses rejected by per-stage schema validation",
		},
		[]string{"stage"},
	)

	// Sandbox metrics
	SandboxExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabularis_sandbox_executions_total",
			Help: "Code sandbox executions by outcome",
		},
		[]string{"status"}, // ok, failed, timeout, transport_error
	)

	SandboxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabularis_sandbox_duration_seconds",
			Help:    "Sandbox execution wall-clock duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// Profiler metrics
	ProfiledColumnsDetailed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabularis_profiled_columns_detailed",
			Help:    "Number of columns receiving a detailed profile per session",
			Buckets: []float64{1, 5, 10, 20, 30, 40},
		},
	)

	ProfileCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabularis_profile_cache_hits_total",
			Help: "Compact-overview cache hits in the dataset registry",
		},
	)
)
