// Package queue implements the durable Task Queue described in spec.md
// §4.3: each logical queue is backed by three topics (primary, retry,
// skip), with redelivery-until-ack semantics and a bounded retry-to-skip
// escalation.
//
// The broker generalises bbolt the way the teacher repo's
// pkg/storage.BoltStore uses it for entity storage: one bucket per
// topic, keyed here by a monotonically increasing offset instead of an
// entity id, plus a cursors bucket tracking the next offset each
// topic will read.
package queue
