package coordinator

import (
	"github.com/replicante-io/replicore/pkg/metrics"
)

// Lock is a non-blocking lock handle (spec.md §4.1): Acquire either
// succeeds immediately or fails with corerr.LockHeld, it never blocks
// waiting for the current holder.
type Lock struct {
	name  string
	coord *RaftCoordinator
}

// Acquire attempts to take the lock for owner. A LockHeld error names
// the current holder; the caller decides whether to retry later.
func (l *Lock) Acquire(owner string) error {
	err := l.coord.apply(opLockAcquire, lockAcquireArgs{Name: l.name, Owner: owner})
	outcome := "acquired"
	if err != nil {
		outcome = "held"
	}
	metrics.LockAcquisitionsTotal.WithLabelValues(l.name, outcome).Inc()
	if err == nil {
		metrics.LockHeldGauge.WithLabelValues(l.name).Set(1)
	}
	return err
}

// Release gives up the lock. It is a no-op if nobody holds the lock
// (already released), and returns corerr.LockLost if a different owner
// now holds it.
func (l *Lock) Release(owner string) error {
	err := l.coord.apply(opLockRelease, lockReleaseArgs{Name: l.name, Owner: owner})
	if err == nil {
		metrics.LockHeldGauge.WithLabelValues(l.name).Set(0)
	}
	return err
}

// Owner returns the current holder of the lock, or "" if unheld.
func (l *Lock) Owner() string {
	return l.coord.fsm.lockOwner(l.name)
}

// Watch returns a channel closed the next time this lock's state changes.
func (l *Lock) Watch() <-chan struct{} {
	return l.coord.watches.Watch("lock", l.name)
}
