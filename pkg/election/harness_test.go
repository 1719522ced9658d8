package election

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptLogic is a Logic that records which hooks fire and returns
// pre-programmed verbs.
type scriptLogic struct {
	calls []string

	onPrimary func(n int) Verb
	primaryN  int
}

func (l *scriptLogic) PreCheck(e *Election) Verb { l.calls = append(l.calls, "pre"); return Proceed }

func (l *scriptLogic) OnPrimary(e *Election) Verb {
	l.calls = append(l.calls, "primary")
	l.primaryN++
	if l.onPrimary != nil {
		return l.onPrimary(l.primaryN)
	}
	return Proceed
}

func (l *scriptLogic) OnSecondary(e *Election) Verb {
	l.calls = append(l.calls, "secondary")
	return Proceed
}

func (l *scriptLogic) OnNotCandidate(e *Election) Verb {
	l.calls = append(l.calls, "not_candidate")
	return Exit
}

func (l *scriptLogic) OnTerminated(e *Election, reason string) Verb {
	l.calls = append(l.calls, "terminated:"+reason)
	return Exit
}

func (l *scriptLogic) PostCheck(e *Election) Verb { l.calls = append(l.calls, "post"); return Proceed }

func (l *scriptLogic) HandleError(e *Election, err error) Verb {
	l.calls = append(l.calls, "error")
	return Exit
}

func TestHarnessDispatchesPrimaryAndStepsDownOnExit(t *testing.T) {
	table := newMemTable()
	e := New("test", "replica-1", table)
	logic := &scriptLogic{onPrimary: func(n int) Verb {
		if n >= 3 {
			return Exit
		}
		return Proceed
	}}

	h := NewHarness(e, logic, Config{LoopDelay: time.Millisecond})
	require.NoError(t, h.Run())

	assert.Equal(t, 3, logic.primaryN)
	// Exit always steps down before Run returns.
	assert.Empty(t, table.LiveCandidates())
	assert.Equal(t, NotCandidate, e.Status())
}

func TestHarnessStepDownVerbReleasesRole(t *testing.T) {
	table := newMemTable()
	e := New("test", "replica-1", table)
	logic := &scriptLogic{onPrimary: func(n int) Verb { return StepDown }}

	h := NewHarness(e, logic, Config{LoopDelay: time.Millisecond})
	require.NoError(t, h.Run())

	// After the StepDown verb the next iteration dispatches to
	// OnNotCandidate, which exits.
	assert.Equal(t, 1, logic.primaryN)
	assert.Contains(t, logic.calls, "not_candidate")
}

func TestHarnessElectionTermForcesReRun(t *testing.T) {
	table := newMemTable()
	e := New("test", "replica-1", table)
	exits := 0
	logic := &scriptLogic{onPrimary: func(n int) Verb {
		exits = n
		if n >= 5 {
			return Exit
		}
		return Proceed
	}}

	h := NewHarness(e, logic, Config{LoopDelay: time.Millisecond, ElectionTerm: 2})
	require.NoError(t, h.Run())

	// Every second loop re-runs the election: step down + run registers
	// again, so the table sees strictly more registrations than the
	// initial one.
	assert.GreaterOrEqual(t, exits, 5)
	assert.Greater(t, table.registers, 1)
}

func TestHarnessTerminatedDispatchesReason(t *testing.T) {
	table := newMemTable()
	e := New("test", "replica-1", table)
	pulled := false
	logic := &scriptLogic{onPrimary: func(n int) Verb {
		// Yank our candidate record between iterations.
		if !pulled {
			pulled = true
			_ = table.Withdraw("replica-1")
		}
		return Proceed
	}}

	h := NewHarness(e, logic, Config{LoopDelay: time.Millisecond})
	require.NoError(t, h.Run())

	assert.Contains(t, logic.calls, "terminated:election has no candidates")
}

func TestHarnessStopsOnShutdown(t *testing.T) {
	table := newMemTable()
	e := New("test", "replica-1", table)
	stop := make(chan struct{})
	close(stop)

	h := NewHarness(e, &scriptLogic{}, Config{LoopDelay: time.Hour, Stop: stop})
	done := make(chan error, 1)
	go func() { done <- h.Run() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("harness did not observe shutdown")
	}
	assert.Empty(t, table.LiveCandidates())
}
