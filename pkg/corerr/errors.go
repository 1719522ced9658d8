// Package corerr defines the typed error kinds described in spec.md §7.
// Callers use errors.As to discriminate the kinds. The kinds that carry an
// underlying cause (an Err field) implement Unwrap, so errors.Is/errors.Unwrap
// can inspect the chain through them, the way the teacher repo wraps errors with
// fmt.Errorf("...: %w", err) throughout pkg/manager.
package corerr

import "fmt"

// Backend reports that an external coordination/broker/store op failed.
type Backend struct {
	Op  string
	Err error
}

func (e *Backend) Error() string { return fmt.Sprintf("backend op %q failed: %v", e.Op, e.Err) }
func (e *Backend) Unwrap() error { return e.Err }

// LockHeld reports a non-blocking lock acquisition losing to another owner.
type LockHeld struct {
	Name  string
	Owner string
}

func (e *LockHeld) Error() string {
	return fmt.Sprintf("lock %q already held by %q", e.Name, e.Owner)
}

// LockLost reports a held lock being lost mid-operation.
type LockLost struct {
	Name string
}

func (e *LockLost) Error() string { return fmt.Sprintf("lock %q lost", e.Name) }

// ElectionRunning reports run() being called while already a candidate.
type ElectionRunning struct {
	Name string
}

func (e *ElectionRunning) Error() string { return fmt.Sprintf("election %q already running", e.Name) }

// ElectionTerminated reports an election that has moved to Terminated.
type ElectionTerminated struct {
	Name   string
	Reason string
}

func (e *ElectionTerminated) Error() string {
	return fmt.Sprintf("election %q terminated: %s", e.Name, e.Reason)
}

// StoreRead reports a primary/view store read failure with namespace/cluster context.
type StoreRead struct {
	NsID, ClusterID string
	Err             error
}

func (e *StoreRead) Error() string {
	return fmt.Sprintf("store read failed for %s/%s: %v", e.NsID, e.ClusterID, e.Err)
}
func (e *StoreRead) Unwrap() error { return e.Err }

// StoreWrite reports a primary/view store write failure with namespace/cluster context.
type StoreWrite struct {
	NsID, ClusterID string
	Err             error
}

func (e *StoreWrite) Error() string {
	return fmt.Sprintf("store write failed for %s/%s: %v", e.NsID, e.ClusterID, e.Err)
}
func (e *StoreWrite) Unwrap() error { return e.Err }

// StorePersist reports a failure persisting a ClusterView fragment.
type StorePersist struct {
	NsID, ClusterID string
	Err             error
}

func (e *StorePersist) Error() string {
	return fmt.Sprintf("store persist failed for %s/%s: %v", e.NsID, e.ClusterID, e.Err)
}
func (e *StorePersist) Unwrap() error { return e.Err }

// ClientConnect reports a failure establishing a connection to a node agent.
type ClientConnect struct {
	Endpoint string
	Err      error
}

func (e *ClientConnect) Error() string {
	return fmt.Sprintf("connect to %q failed: %v", e.Endpoint, e.Err)
}
func (e *ClientConnect) Unwrap() error { return e.Err }

// ClientResponse reports a non-2xx or malformed response from a node agent endpoint.
type ClientResponse struct {
	Endpoint string
	Err      error
}

func (e *ClientResponse) Error() string {
	return fmt.Sprintf("request to %q failed: %v", e.Endpoint, e.Err)
}
func (e *ClientResponse) Unwrap() error { return e.Err }

// CommitFailed reports a task queue offset commit failure.
type CommitFailed struct {
	Queue string
	Err   error
}

func (e *CommitFailed) Error() string { return fmt.Sprintf("commit failed for queue %q: %v", e.Queue, e.Err) }
func (e *CommitFailed) Unwrap() error { return e.Err }

// CommitRetryStuck reports exceeding the retry-commit cap for a cached message.
type CommitRetryStuck struct {
	MessageID string
}

func (e *CommitRetryStuck) Error() string {
	return fmt.Sprintf("commit retries exhausted for message %q", e.MessageID)
}

// TaskMalformed reports a task that is missing an id/payload or carries
// invalid headers (TaskNoId/TaskNoPayload/TaskHeaderInvalid/TaskInvalidID
// collapsed into one kind with a Reason discriminator).
type TaskMalformed struct {
	Reason string
}

func (e *TaskMalformed) Error() string { return fmt.Sprintf("malformed task: %s", e.Reason) }

// ActionTimedOut reports an orchestrator action force-failed on timeout.
type ActionTimedOut struct {
	NsID, ClusterID, ActionID string
}

func (e *ActionTimedOut) Error() string {
	return fmt.Sprintf("action %s/%s/%s timed out", e.NsID, e.ClusterID, e.ActionID)
}

// ClusterViewCorruptKind discriminates the ClusterView builder invariants.
type ClusterViewCorruptKind string

const (
	ClusterIDClash     ClusterViewCorruptKind = "ClusterIdClash"
	DuplicateAgent     ClusterViewCorruptKind = "DuplicateAgent"
	DuplicateNode      ClusterViewCorruptKind = "DuplicateNode"
	DuplicateShard     ClusterViewCorruptKind = "DuplicateShard"
	DuplicateAction    ClusterViewCorruptKind = "DuplicateAction"
	ManyPrimariesFound ClusterViewCorruptKind = "ManyPrimariesFound"
)

// ClusterViewCorrupt reports a ClusterView builder invariant violation.
type ClusterViewCorrupt struct {
	Kind   ClusterViewCorruptKind
	Detail string
}

func (e *ClusterViewCorrupt) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

// NotFound reports a missing record in the Primary store.
type NotFound struct {
	Kind string
	Key  string
}

func (e *NotFound) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.Key) }

// ConfigLoad reports a boot-time configuration loading failure.
type ConfigLoad struct {
	Path string
	Err  error
}

func (e *ConfigLoad) Error() string { return fmt.Sprintf("load config %q failed: %v", e.Path, e.Err) }
func (e *ConfigLoad) Unwrap() error { return e.Err }

// InterfaceInit reports a named external collaborator failing to initialise.
type InterfaceInit struct {
	Name string
	Err  error
}

func (e *InterfaceInit) Error() string { return fmt.Sprintf("init interface %q failed: %v", e.Name, e.Err) }
func (e *InterfaceInit) Unwrap() error { return e.Err }

// ThreadSpawn reports a worker goroutine failing to start.
type ThreadSpawn struct {
	Name string
	Err  error
}

func (e *ThreadSpawn) Error() string { return fmt.Sprintf("spawn worker %q failed: %v", e.Name, e.Err) }
func (e *ThreadSpawn) Unwrap() error { return e.Err }
