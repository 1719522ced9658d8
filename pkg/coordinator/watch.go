package coordinator

import "sync"

// watchRegistry hands out one-shot channels closed the next time a named
// key changes, the in-process analogue of a ZooKeeper watch: cheap,
// process-local, and re-armed by the caller after each fire.
type watchRegistry struct {
	mu   sync.Mutex
	subs map[string][]chan struct{}
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{subs: make(map[string][]chan struct{})}
}

func key(kind, name string) string { return kind + "/" + name }

// Watch returns a channel closed the next time fire(kind, name) runs.
func (w *watchRegistry) Watch(kind, name string) <-chan struct{} {
	ch := make(chan struct{})
	w.mu.Lock()
	k := key(kind, name)
	w.subs[k] = append(w.subs[k], ch)
	w.mu.Unlock()
	return ch
}

// fire closes and clears every channel registered for (kind, name).
func (w *watchRegistry) fire(kind, name string) {
	w.mu.Lock()
	k := key(kind, name)
	subs := w.subs[k]
	delete(w.subs, k)
	w.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}
