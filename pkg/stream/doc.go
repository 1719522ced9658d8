// Package stream implements the append-only event log from spec.md
// §4.4: records are appended keyed by entity partition, and a Follow
// iterator delivers them to a consumer group with ack-based offset
// commit and bounded exponential backoff on failure.
//
// Like pkg/queue, durability is bbolt: one bucket holds every appended
// record keyed by a monotonic sequence, a secondary by_partition index
// bucket records each partition's sequence numbers (Follow reads the
// records bucket in sequence order, not this index), and an offsets
// bucket tracks each consumer group's position.
package stream
