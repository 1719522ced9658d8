// Package orchestrator implements the Orchestrator Scheduler (spec.md
// §4.8) and the Cluster Orchestrator (spec.md §4.6): the leader-elected
// producer that enqueues orchestrate_cluster tasks, and the per-task
// worker that takes a cluster's non-blocking lock, syncs its agents/
// nodes/shards/actions, progresses orchestrator-actions, aggregates
// cluster metadata, and reschedules the next pass.
//
// The split mirrors the teacher's pkg/scheduler.Scheduler (ticker-driven
// producer) and pkg/reconciler.Reconciler (per-task worker split into
// small private step methods): scheduler.go is the former, worker.go/
// sync.go/nodeactions.go/actions.go/aggregate.go are the latter.
package orchestrator
