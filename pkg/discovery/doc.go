// Package discovery implements the Discovery Scheduler from spec.md
// §4.7: a leader-elected producer that scans due DiscoverySettings and
// enqueues discover_clusters tasks, plus the worker that fans each task
// out across its configured backends (file, HTTP-paginated platform),
// synthesises a ClusterSpec on first discovery, and persists/emits the
// resulting cluster-discovery changes.
package discovery
