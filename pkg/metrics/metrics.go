// Package metrics exposes Prometheus collectors for every component in
// Replicante Core, following the same flat var-block-of-collectors plus
// Timer helper idiom as the teacher repo's pkg/metrics/metrics.go.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Coordinator metrics.
	ElectionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_election_transitions_total",
			Help: "Election status transitions by election name and new status.",
		},
		[]string{"election", "status"},
	)

	LockAcquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_lock_acquisitions_total",
			Help: "Non-blocking lock acquire attempts by lock name and outcome.",
		},
		[]string{"lock", "outcome"},
	)

	LockHeldGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "replicore_lock_held",
			Help: "Whether this process currently holds a given lock (1) or not (0).",
		},
		[]string{"lock"},
	)

	// Task queue metrics.
	TaskEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_queue_emitted_total",
			Help: "Tasks emitted by queue.",
		},
		[]string{"queue"},
	)

	TaskAckTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_queue_ack_total",
			Help: "Terminal task acks by queue and outcome (success, fail, skip).",
		},
		[]string{"queue", "outcome"},
	)

	TaskRedeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_queue_redelivered_total",
			Help: "Un-acked tasks redelivered to the handler by queue.",
		},
		[]string{"queue"},
	)

	// Stream metrics.
	StreamAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_stream_appended_total",
			Help: "Events appended to the stream by event code.",
		},
		[]string{"code"},
	)

	StreamBackoffTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_stream_backoff_total",
			Help: "Stream follower backoff cycles by group.",
		},
		[]string{"group"},
	)

	// Discovery metrics.
	DiscoveryRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_discovery_runs_total",
			Help: "Discovery passes by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)

	// Orchestrator metrics.
	OrchestrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replicore_orchestration_duration_seconds",
			Help:    "Duration of one cluster orchestration pass.",
			Buckets: prometheus.DefBuckets,
		},
	)

	OrchestrationSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_orchestration_skipped_total",
			Help: "Orchestration passes skipped because the cluster lock was already held.",
		},
		[]string{"cluster_id"},
	)

	NodeActionsScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_node_actions_scheduled_total",
			Help: "Node actions scheduled with an agent by outcome.",
		},
		[]string{"outcome"},
	)

	OrchestratorActionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replicore_orchestrator_action_transitions_total",
			Help: "Orchestrator action state transitions by kind and new state.",
		},
		[]string{"kind", "state"},
	)

	ClusterMetaShards = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "replicore_cluster_shards",
			Help: "Shard counts per cluster by role.",
		},
		[]string{"cluster_id", "role"},
	)
)

func init() {
	prometheus.MustRegister(
		ElectionTransitionsTotal,
		LockAcquisitionsTotal,
		LockHeldGauge,
		TaskEmittedTotal,
		TaskAckTotal,
		TaskRedeliveredTotal,
		StreamAppendedTotal,
		StreamBackoffTotal,
		DiscoveryRunsTotal,
		OrchestrationDuration,
		OrchestrationSkippedTotal,
		NodeActionsScheduledTotal,
		OrchestratorActionTransitionsTotal,
		ClusterMetaShards,
	)
}

// Handler returns the HTTP handler serving the Prometheus exposition format.
func Handler() http.Handler { return promhttp.Handler() }

// Timer measures an operation's duration for later histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a new Timer.
func NewTimer() *Timer { return &Timer{start: time.Now()} }

// ObserveDuration records the elapsed duration on a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration on a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
