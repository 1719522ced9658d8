// Package upkeep is the process-wide worker supervisor described in
// spec.md §5: every long-lived loop (schedulers, the stream follower, the
// retry consumer) registers with it; the first fatal error or a cancelled
// context closes a shared stop channel and Run waits for every worker to
// return before handing back the triggering error.
//
// This generalises the stopCh-plus-goroutine idiom the teacher repo
// repeats per component (pkg/scheduler.Start/Stop, pkg/reconciler.Start/Stop,
// pkg/events.Broker.Start/Stop) into one reusable supervisor.
package upkeep

import (
	"context"
	"sync"

	"github.com/replicante-io/replicore/pkg/log"
)

// Worker is a long-running loop that returns when stop is closed, or
// returns a non-nil error if it exits early for any other reason.
type Worker func(stop <-chan struct{}) error

// Supervisor starts and tracks a fixed set of named workers.
type Supervisor struct {
	mu      sync.Mutex
	workers map[string]Worker
	stop    chan struct{}
	once    sync.Once
	errs    chan error
}

// New creates an empty Supervisor.
func New() *Supervisor {
	return &Supervisor{
		workers: make(map[string]Worker),
		stop:    make(chan struct{}),
		errs:    make(chan error, 8),
	}
}

// Register adds a worker to be started by Run. Register must be called
// before Run; registering after Run has started has no effect.
func (s *Supervisor) Register(name string, w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[name] = w
}

// Shutdown signals every worker to stop. Safe to call multiple times.
func (s *Supervisor) Shutdown() {
	s.once.Do(func() { close(s.stop) })
}

// StopCh returns the shared shutdown channel workers should select on.
func (s *Supervisor) StopCh() <-chan struct{} { return s.stop }

// Run starts every registered worker in its own goroutine and blocks
// until ctx is cancelled or a worker exits with an error, then shuts
// down every other worker and waits for them all to return.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.workers))
	for name := range s.workers {
		names = append(names, name)
	}
	workers := s.workers
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, name := range names {
		name, w := name, workers[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w(s.stop); err != nil {
				logger := log.WithComponent("upkeep")
				logger.Error().Err(err).Str("worker", name).Msg("worker exited with error")
				select {
				case s.errs <- err:
				default:
				}
				s.Shutdown()
			}
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.stop:
		}
	}()

	wg.Wait()

	select {
	case err := <-s.errs:
		return err
	default:
		return nil
	}
}
