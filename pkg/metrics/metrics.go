package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for command metrics.
const (
	OutcomeSuccess        = "success"
	OutcomeCommandFailure = "command_failure"
	OutcomeIOFailure      = "io_failure"
	OutcomeCanceled       = "canceled"
)

// Metrics holds all Prometheus metrics for unitlens.
// Using promauto for automatic registration with default registry.
var (
	// --- Command Metrics ---

	// CommandsTotal counts finished commands by program and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unitlens",
			Subsystem: "commands",
			Name:      "total",
			Help:      "Total number of executed commands by program and outcome",
		},
		[]string{"program", "outcome"},
	)

	// CommandDuration tracks wall time from spawn to reap.
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unitlens",
			Subsystem: "commands",
			Name:      "duration_seconds",
			Help:      "Duration of executed commands in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"program"},
	)

	// CommandOutputBytes tracks the size of captured output.
	CommandOutputBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unitlens",
			Subsystem: "commands",
			Name:      "output_bytes",
			Help:      "Size of captured combined output in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to ~16MB
		},
		[]string{"program"},
	)

	// CommandsRunning tracks child processes currently alive.
	CommandsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "unitlens",
			Subsystem: "commands",
			Name:      "running",
			Help:      "Number of child processes currently running",
		},
	)

	// --- Agent Metrics ---

	// HeartbeatsSent counts successful registry announcements.
	HeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "unitlens",
			Subsystem: "agent",
			Name:      "heartbeats_total",
			Help:      "Total heartbeats sent to the agent registry",
		},
	)

	// HeartbeatFailures counts failed or rejected registry announcements.
	HeartbeatFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "unitlens",
			Subsystem: "agent",
			Name:      "heartbeat_failures_total",
			Help:      "Total heartbeats that failed or were short-circuited",
		},
	)

	// CircuitBreakerState is 0 closed, 1 open, 2 half-open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "unitlens",
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)

// RecordCommand records metrics for a finished command.
func RecordCommand(program, outcome string, durationSeconds float64, outputBytes int) {
	CommandsTotal.WithLabelValues(program, outcome).Inc()
	CommandDuration.WithLabelValues(program).Observe(durationSeconds)
	CommandOutputBytes.WithLabelValues(program).Observe(float64(outputBytes))
}
