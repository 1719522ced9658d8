// Package storage implements the Primary store and View store from
// spec.md §6. The Primary store is a document store with
// upsert-by-natural-key semantics for every entity in §3, plus the
// query support the schedulers and orchestrator need (due-record
// scans, cluster_id substring search, top-N by shard count). The View
// store holds derived, read-optimised projections that may be rebuilt
// from the primary store; here that is a capped recent-events
// projection per cluster.
//
// Like pkg/queue and pkg/stream, the backing mechanism is bbolt: one
// bucket per entity type keyed by its natural key, following the
// teacher's pkg/storage.BoltStore layout.
package storage
