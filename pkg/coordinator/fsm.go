package coordinator

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	"github.com/replicante-io/replicore/pkg/corerr"
)

// command is the envelope every raft log entry carries, mirroring the
// teacher repo's manager.Command{Op,Data} shape.
type command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opLockAcquire      = "lock_acquire"
	opLockRelease      = "lock_release"
	opCandidateRegister = "candidate_register"
	opCandidateWithdraw = "candidate_withdraw"
)

// lockRecord is the replicated state of one non-blocking lock.
type lockRecord struct {
	Owner string `json:"owner"`
	Index uint64 `json:"index"`
}

// candidateRecord is one election candidate's replicated bookkeeping.
// Index is the raft log index the first registration committed at (a
// refresh only updates LastSeen): the candidate with the lowest live
// index is Primary, mirroring the
// "lowest sequential ephemeral node wins" rule spec.md's glossary
// describes for a ZooKeeper-backed coordinator.
type candidateRecord struct {
	Index    uint64    `json:"index"`
	LastSeen time.Time `json:"last_seen"`
}

type lockAcquireArgs struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

type lockReleaseArgs struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

type candidateArgs struct {
	Election  string `json:"election"`
	Candidate string `json:"candidate"`
}

// applyResult is what Apply returns through raft's future.Response(); it
// is always either nil (success) or an error value.
type applyResult struct {
	err error
}

// coordFSM is the raft.FSM backing a RaftCoordinator: a flat table of
// locks plus a per-election table of candidates, folded from the
// committed command log exactly like the teacher's manager.WarrenFSM
// folds node/service/secret commands into its storage.Store.
type coordFSM struct {
	mu         sync.RWMutex
	locks      map[string]*lockRecord
	candidates map[string]map[string]*candidateRecord

	// notify is called (outside the lock) after every successful mutation
	// so RaftCoordinator can wake up in-process watchers.
	notify func(kind, name string)
}

func newCoordFSM() *coordFSM {
	return &coordFSM{
		locks:      make(map[string]*lockRecord),
		candidates: make(map[string]map[string]*candidateRecord),
	}
}

// Apply implements raft.FSM.
func (f *coordFSM) Apply(l *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return applyResult{err: err}
	}

	f.mu.Lock()
	var changedKind, changedName string
	result := applyResult{}
	switch cmd.Op {
	case opLockAcquire:
		var args lockAcquireArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			result.err = err
			break
		}
		result.err = f.applyLockAcquire(args, l.Index)
		changedKind, changedName = "lock", args.Name

	case opLockRelease:
		var args lockReleaseArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			result.err = err
			break
		}
		result.err = f.applyLockRelease(args)
		changedKind, changedName = "lock", args.Name

	case opCandidateRegister:
		var args candidateArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			result.err = err
			break
		}
		f.applyCandidateRegister(args, l.Index)
		changedKind, changedName = "election", args.Election

	case opCandidateWithdraw:
		var args candidateArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			result.err = err
			break
		}
		f.applyCandidateWithdraw(args)
		changedKind, changedName = "election", args.Election
	}
	f.mu.Unlock()

	if f.notify != nil && changedName != "" {
		f.notify(changedKind, changedName)
	}
	return result
}

// applyLockAcquire must be called with f.mu held.
func (f *coordFSM) applyLockAcquire(args lockAcquireArgs, index uint64) error {
	if existing, ok := f.locks[args.Name]; ok && existing.Owner != args.Owner {
		return &corerr.LockHeld{Name: args.Name, Owner: existing.Owner}
	}
	f.locks[args.Name] = &lockRecord{Owner: args.Owner, Index: index}
	return nil
}

// applyLockRelease must be called with f.mu held.
func (f *coordFSM) applyLockRelease(args lockReleaseArgs) error {
	existing, ok := f.locks[args.Name]
	if !ok {
		return nil
	}
	if existing.Owner != args.Owner {
		return &corerr.LockLost{Name: args.Name}
	}
	delete(f.locks, args.Name)
	return nil
}

// applyCandidateRegister must be called with f.mu held.
func (f *coordFSM) applyCandidateRegister(args candidateArgs, index uint64) {
	election, ok := f.candidates[args.Election]
	if !ok {
		election = make(map[string]*candidateRecord)
		f.candidates[args.Election] = election
	}
	if existing, ok := election[args.Candidate]; ok {
		existing.LastSeen = time.Now()
		return
	}
	election[args.Candidate] = &candidateRecord{Index: index, LastSeen: time.Now()}
}

// applyCandidateWithdraw must be called with f.mu held.
func (f *coordFSM) applyCandidateWithdraw(args candidateArgs) {
	if election, ok := f.candidates[args.Election]; ok {
		delete(election, args.Candidate)
	}
}

// lockOwner returns the current owner of a lock, or "" if unheld.
func (f *coordFSM) lockOwner(name string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if r, ok := f.locks[name]; ok {
		return r.Owner
	}
	return ""
}

// liveCandidates returns the candidates for an election that have
// refreshed within ttl, sorted by ascending raft index (lowest index is
// Primary).
func (f *coordFSM) liveCandidates(election string, ttl time.Duration) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	table, ok := f.candidates[election]
	if !ok {
		return nil
	}
	cutoff := time.Now().Add(-ttl)
	type entry struct {
		id    string
		index uint64
	}
	var live []entry
	for id, rec := range table {
		if ttl <= 0 || rec.LastSeen.After(cutoff) {
			live = append(live, entry{id: id, index: rec.Index})
		}
	}
	for i := 1; i < len(live); i++ {
		for j := i; j > 0 && live[j].index < live[j-1].index; j-- {
			live[j], live[j-1] = live[j-1], live[j]
		}
	}
	ids := make([]string, len(live))
	for i, e := range live {
		ids[i] = e.id
	}
	return ids
}

// coordSnapshot is the JSON-serialised shape raft persists between log
// compactions, mirroring the teacher's manager.WarrenSnapshot.
type coordSnapshot struct {
	Locks      map[string]*lockRecord            `json:"locks"`
	Candidates map[string]map[string]*candidateRecord `json:"candidates"`
}

// Snapshot implements raft.FSM.
func (f *coordFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap := &coordSnapshot{
		Locks:      make(map[string]*lockRecord, len(f.locks)),
		Candidates: make(map[string]map[string]*candidateRecord, len(f.candidates)),
	}
	for k, v := range f.locks {
		cp := *v
		snap.Locks[k] = &cp
	}
	for election, table := range f.candidates {
		cpTable := make(map[string]*candidateRecord, len(table))
		for id, rec := range table {
			cp := *rec
			cpTable[id] = &cp
		}
		snap.Candidates[election] = cpTable
	}
	return snap, nil
}

// Restore implements raft.FSM.
func (f *coordFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var snap coordSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks = snap.Locks
	if f.locks == nil {
		f.locks = make(map[string]*lockRecord)
	}
	f.candidates = snap.Candidates
	if f.candidates == nil {
		f.candidates = make(map[string]map[string]*candidateRecord)
	}
	return nil
}

// Persist implements raft.FSMSnapshot.
func (s *coordSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release implements raft.FSMSnapshot.
func (s *coordSnapshot) Release() {}
