package queue

import (
	"encoding/json"
	"time"
)

// Task is what a queue handler receives (spec.md §4.3).
type Task struct {
	ID         string            `json:"id"`
	Payload    json.RawMessage   `json:"payload"`
	Headers    map[string]string `json:"headers"`
	Queue      string            `json:"-"`
	RetryCount int               `json:"retry_count"`
}

// message is the on-disk envelope appended to a topic bucket.
type message struct {
	ID         string            `json:"id"`
	Payload    json.RawMessage   `json:"payload"`
	Headers    map[string]string `json:"headers"`
	RetryCount int               `json:"retry_count"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Ack is the terminal acknowledgement API a handler must call exactly
// once per task before the next poll (spec.md §4.3).
type Ack interface {
	// Success commits the primary offset; the task is done.
	Success() error
	// Fail republishes the task to the retry topic (or the skip topic, if
	// retry_count has reached the queue's max_retry_count), then commits
	// the primary offset.
	Fail() error
	// Skip republishes the task to the skip topic unconditionally, then
	// commits the primary offset.
	Skip() error
}

// Handler processes one task per invocation and must call exactly one
// method on ack before returning.
type Handler func(task Task, ack Ack)

// Settings configures one logical queue's retry/redelivery behaviour.
type Settings struct {
	// PollInterval is how often the consumer polls for new work, and also
	// the redelivery delay for an un-acked cached task.
	PollInterval time.Duration
	// RetryDelay is how long a failed task waits in the retry topic
	// before being republished to the primary topic.
	RetryDelay time.Duration
	// MaxRetryCount auto-converts Fail into Skip once reached.
	MaxRetryCount int
	// CommitRetries bounds how many times the consumer retries a stuck
	// offset commit before surfacing corerr.CommitRetryStuck.
	CommitRetries int
}

// DefaultSettings returns sane defaults for a queue that does not need
// tuning, modelled on the intervals spec.md's seed scenarios exercise.
func DefaultSettings() Settings {
	return Settings{
		PollInterval:  time.Second,
		RetryDelay:    30 * time.Second,
		MaxRetryCount: 5,
		CommitRetries: 3,
	}
}

// Queue names used by the core (spec.md §4.3).
const (
	DiscoverClusters  = "discover_clusters"
	OrchestrateCluster = "orchestrate_cluster"
)

// DiscoverPlatform is the discover_clusters task payload.
type DiscoverPlatform struct {
	NsID string `json:"ns_id"`
	Name string `json:"name"`
}

// OrchestrateClusterPayload is the orchestrate_cluster task payload.
type OrchestrateClusterPayload struct {
	NsID      string `json:"ns_id"`
	ClusterID string `json:"cluster_id"`
}
