package election

import (
	"fmt"
	"sync/atomic"

	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/log"
	"github.com/replicante-io/replicore/pkg/metrics"
)

// Status is one of the election states in spec.md §4.1.
type Status string

const (
	NotCandidate Status = "NotCandidate"
	InProgress   Status = "InProgress"
	Primary      Status = "Primary"
	Secondary    Status = "Secondary"
	Terminated   Status = "Terminated"
)

// CandidateTable is the subset of *coordinator.Candidate an Election
// needs. coordinator.Candidate implements it structurally, so production
// wiring passes coord.Election(...) directly; tests can substitute an
// in-memory table without bootstrapping raft.
type CandidateTable interface {
	Register(id string) error
	Withdraw(id string) error
	LiveCandidates() []string
}

// Election is E(name): a watchable Primary/Secondary role, built on a
// coordinator candidate table. It is not itself a loop; pkg/election's
// Harness drives it.
type Election struct {
	name      string
	candidate CandidateTable
	id        string

	status           Status
	terminatedReason string
	primaryFlag      atomic.Bool
}

// New creates an election handle. id is this process's candidate
// identity (e.g. node id); it must be unique per election participant.
func New(name, id string, candidate CandidateTable) *Election {
	return &Election{name: name, candidate: candidate, id: id, status: NotCandidate}
}

// Name returns the election's name.
func (e *Election) Name() string { return e.name }

// Run registers this process as a candidate. It fails with
// corerr.ElectionRunning if already Registered/InProgress/Primary/Secondary.
func (e *Election) Run() error {
	if e.status != NotCandidate && e.status != Terminated {
		return &corerr.ElectionRunning{Name: e.name}
	}
	if err := e.candidate.Register(e.id); err != nil {
		return err
	}
	e.status = InProgress
	e.refresh()
	return nil
}

// StepDown withdraws this process's candidate record and transitions to
// NotCandidate, releasing Primary/Secondary role if held.
func (e *Election) StepDown() error {
	if e.status == NotCandidate {
		return nil
	}
	if err := e.candidate.Withdraw(e.id); err != nil {
		return err
	}
	e.setStatus(NotCandidate, "")
	return nil
}

// Status refreshes and returns the current election status, following
// the sort-by-sequence-number rule in spec.md §4.1: lowest live index is
// Primary, next is Secondary, missing entirely is Terminated.
func (e *Election) Status() Status {
	if e.status == NotCandidate || e.status == Terminated {
		return e.status
	}
	e.refresh()
	return e.status
}

// TerminatedReason returns why the election terminated, if Status() is Terminated.
func (e *Election) TerminatedReason() string { return e.terminatedReason }

// Watch returns the shared atomic flag that reflects Primary status: true
// exactly when the last refresh found this candidate first in line.
func (e *Election) Watch() *atomic.Bool { return &e.primaryFlag }

func (e *Election) refresh() {
	live := e.candidate.LiveCandidates()
	if len(live) == 0 {
		e.setStatus(Terminated, "election has no candidates")
		return
	}
	found := -1
	for i, id := range live {
		if id == e.id {
			found = i
			break
		}
	}
	if found == -1 {
		e.setStatus(Terminated, "election candidate deleted")
		return
	}
	if found == 0 {
		e.setStatus(Primary, "")
	} else {
		e.setStatus(Secondary, "")
	}
}

func (e *Election) setStatus(s Status, reason string) {
	if e.status == s && e.terminatedReason == reason {
		return
	}
	e.status = s
	e.terminatedReason = reason
	e.primaryFlag.Store(s == Primary)
	metrics.ElectionTransitionsTotal.WithLabelValues(e.name, string(s)).Inc()
	logger := log.WithComponent("election")
	entry := logger.Info().Str("election", e.name).Str("status", string(s))
	if reason != "" {
		entry = entry.Str("reason", reason)
	}
	entry.Msg("election status changed")
}

// Error renders Terminated as a corerr.ElectionTerminated, for hooks that
// want a uniform error value.
func (e *Election) Error() error {
	if e.status != Terminated {
		return nil
	}
	return &corerr.ElectionTerminated{Name: e.name, Reason: e.terminatedReason}
}

func (s Status) String() string { return string(s) }

var _ fmt.Stringer = Status("")
