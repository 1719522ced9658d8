// Package clusterview implements the Cluster View Builder from spec.md
// §4.5: an incremental, validating builder that folds a ClusterSpec,
// its ClusterDiscovery, and per-node agent/shard/action records into an
// immutable snapshot with the index side-tables the orchestrator needs.
package clusterview
