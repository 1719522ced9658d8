package coordinator

import "time"

// Candidate is a handle onto one election's replicated candidate table
// (spec.md §4.2). It is the primitive pkg/election's looping harness
// polls; it does not itself decide Primary/Secondary, it only reports
// the ordered list of currently-live candidates.
type Candidate struct {
	election string
	ttl      time.Duration
	coord    *RaftCoordinator
}

// Register adds id to the election's candidate table, or refreshes its
// liveness if already registered.
func (c *Candidate) Register(id string) error {
	return c.coord.apply(opCandidateRegister, candidateArgs{Election: c.election, Candidate: id})
}

// Refresh is Register's liveness heartbeat; a candidate that stops
// calling Refresh drops out of LiveCandidates once ttl elapses, the
// analogue of a ZooKeeper ephemeral node's session expiring.
func (c *Candidate) Refresh(id string) error {
	return c.Register(id)
}

// Withdraw removes id from the election's candidate table immediately.
func (c *Candidate) Withdraw(id string) error {
	return c.coord.apply(opCandidateWithdraw, candidateArgs{Election: c.election, Candidate: id})
}

// LiveCandidates returns every candidate that has registered/refreshed
// within ttl, ordered by ascending raft index: index 0 is Primary.
func (c *Candidate) LiveCandidates() []string {
	return c.coord.fsm.liveCandidates(c.election, c.ttl)
}

// IsPrimary reports whether id is first in LiveCandidates.
func (c *Candidate) IsPrimary(id string) bool {
	live := c.LiveCandidates()
	return len(live) > 0 && live[0] == id
}

// Watch returns a channel closed the next time this election's
// candidate table changes.
func (c *Candidate) Watch() <-chan struct{} {
	return c.coord.watches.Watch("election", c.election)
}
