// Package actionkind is the process-wide orchestrator-action registry
// described in spec.md §4.6/§9: a fixed map from action kind to handler,
// built once from compiled-in Register calls in each kind's own file and
// never mutated after init (spec.md §9: "avoid late registration").
package actionkind

import (
	"fmt"
	"sync"
	"time"

	"github.com/replicante-io/replicore/pkg/types"
)

// ProgressChanges is what a Handler returns to request a state update on
// the orchestrator action it was given (spec.md §4.6 step 4). A nil
// result means "no change this pass".
type ProgressChanges struct {
	State             types.ActionState
	StatePayload      map[string]interface{}
	StatePayloadError *types.ActionErrorPayload
}

// Handler progresses one orchestrator action by one step. Returning an
// error fails the action with that error recorded in state_payload_error
// (spec.md §4.6); it must never mutate the action record itself.
type Handler interface {
	Progress(action *types.OrchestratorAction) (*ProgressChanges, error)
}

// Meta carries registration-time metadata about a kind, namely the
// default timeout applied when an action record does not set its own
// (spec.md §3 OrchestratorAction.timeout / §4.6 step 4 timeout check).
type Meta struct {
	Kind    string
	Timeout time.Duration
}

var (
	mu       sync.Mutex
	handlers = make(map[string]Handler)
	metas    = make(map[string]Meta)
)

// Register adds a kind to the process-wide registry. It panics on
// duplicate registration, matching spec.md §4.6's "attempts to register
// duplicate kinds fail at build time" — this is a build-time defect, not
// a runtime condition a caller can recover from.
func Register(kind string, h Handler, meta Meta) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := handlers[kind]; exists {
		panic(fmt.Sprintf("actionkind: duplicate registration for kind %q", kind))
	}
	handlers[kind] = h
	metas[kind] = meta
}

// Get looks up a kind's handler and metadata.
func Get(kind string) (Handler, Meta, bool) {
	mu.Lock()
	defer mu.Unlock()
	h, ok := handlers[kind]
	if !ok {
		return nil, Meta{}, false
	}
	return h, metas[kind], true
}

// reset clears the registry; used only by tests in this package and its
// siblings that need a clean slate between cases.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	handlers = make(map[string]Handler)
	metas = make(map[string]Meta)
}
