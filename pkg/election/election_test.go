package election

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTable is an in-memory CandidateTable, substituting for
// *coordinator.Candidate so these tests don't need to bootstrap raft.
// Registration order stands in for the raft log index.
type memTable struct {
	seq       uint64
	rows      map[string]uint64
	registers int
}

func newMemTable() *memTable { return &memTable{rows: make(map[string]uint64)} }

func (t *memTable) Register(id string) error {
	t.registers++
	if _, ok := t.rows[id]; !ok {
		t.seq++
		t.rows[id] = t.seq
	}
	return nil
}

func (t *memTable) Withdraw(id string) error {
	delete(t.rows, id)
	return nil
}

func (t *memTable) LiveCandidates() []string {
	ids := make([]string, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return t.rows[ids[i]] < t.rows[ids[j]] })
	return ids
}

func TestTwoContendersOnePrimary(t *testing.T) {
	table := newMemTable()
	first := New("test", "replica-1", table)
	second := New("test", "replica-2", table)

	require.NoError(t, first.Run())
	require.NoError(t, second.Run())

	assert.Equal(t, Primary, first.Status())
	assert.Equal(t, Secondary, second.Status())
	assert.True(t, first.Watch().Load())
	assert.False(t, second.Watch().Load())

	// Step-down on the primary flips the secondary within one refresh.
	require.NoError(t, first.StepDown())
	assert.Equal(t, NotCandidate, first.Status())
	assert.Equal(t, Primary, second.Status())
	assert.True(t, second.Watch().Load())
}

func TestRunWhileRunningFails(t *testing.T) {
	e := New("test", "replica-1", newMemTable())
	require.NoError(t, e.Run())
	assert.Error(t, e.Run())
}

func TestRunAgainAfterStepDown(t *testing.T) {
	e := New("test", "replica-1", newMemTable())
	require.NoError(t, e.Run())
	require.NoError(t, e.StepDown())
	require.NoError(t, e.Run())
	assert.Equal(t, Primary, e.Status())
}

func TestTerminatedWhenCandidateDeleted(t *testing.T) {
	table := newMemTable()
	first := New("test", "replica-1", table)
	second := New("test", "replica-2", table)
	require.NoError(t, first.Run())
	require.NoError(t, second.Run())

	// Our record disappears out from under us but others remain.
	require.NoError(t, table.Withdraw("replica-1"))
	assert.Equal(t, Terminated, first.Status())
	assert.Equal(t, "election candidate deleted", first.TerminatedReason())
	assert.False(t, first.Watch().Load())
	assert.Error(t, first.Error())
}

func TestTerminatedWhenNoCandidates(t *testing.T) {
	table := newMemTable()
	e := New("test", "replica-1", table)
	require.NoError(t, e.Run())

	require.NoError(t, table.Withdraw("replica-1"))
	assert.Equal(t, Terminated, e.Status())
	assert.Equal(t, "election has no candidates", e.TerminatedReason())
}

func TestRunAgainAfterTerminated(t *testing.T) {
	table := newMemTable()
	e := New("test", "replica-1", table)
	require.NoError(t, e.Run())
	require.NoError(t, table.Withdraw("replica-1"))
	require.Equal(t, Terminated, e.Status())

	require.NoError(t, e.Run())
	assert.Equal(t, Primary, e.Status())
}
