// Package coordinator implements the Coordinator contract from spec.md
// §4.1/§4.2: non-blocking locks and election candidate bookkeeping backed
// by a replicated log, so any process in the fleet observes the same
// answer to "who holds lock X" / "who is ahead in election Y".
//
// The backing mechanism is hashicorp/raft plus raft-boltdb, the same
// stack the teacher repo (pkg/manager) uses to replicate its own cluster
// state: a raft.FSM folds a small command log into an in-memory table,
// and raft's log index stands in for the czxid-style monotonic counter
// spec.md's glossary describes for a ZooKeeper-backed coordinator.
package coordinator
