package stream

import (
	"encoding/json"
	"time"
)

// Record is the envelope every stream message carries (spec.md §4.4).
type Record struct {
	Code     string            `json:"code"`
	EntityID string            `json:"entity_id"`
	Payload  json.RawMessage   `json:"payload"`
	Time     time.Time         `json:"time"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Partitioned is implemented by the entity types events are emitted for
// (pkg/types Agent, AgentInfo, Node, Shard, NodeAction,
// OrchestratorAction) so Append can key messages by
// entity_id.partition_key().
type Partitioned interface {
	PartitionKey() string
}

// New builds a Record from any JSON-marshalable payload.
func New(code, entityID string, payload interface{}) (Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Record{}, err
	}
	return Record{Code: code, EntityID: entityID, Payload: data, Time: time.Now()}, nil
}
