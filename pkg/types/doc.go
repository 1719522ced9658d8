// Package types holds the data model shared by every Replicante Core
// package: namespaces, platforms, discovery records, cluster settings,
// agents, nodes, shards, actions, and the aggregated cluster metadata.
//
// Types in this package are plain structs meant to be marshalled to JSON
// for storage (pkg/storage), the task queue (pkg/queue) and the event
// stream (pkg/stream). None of them carry behaviour beyond small
// predicates (IsTerminal, IsDue, PartitionKey) so that every other
// package can depend on types without pulling in storage or transport
// concerns.
package types
