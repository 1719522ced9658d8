package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/types"
)

// ErrDuplicateAction is returned by ScheduleAction when the agent reports
// that an action with the same client-chosen id is already scheduled
// (spec.md §4.6: "duplicate-action errors from the agent are counted and
// ignored"). Agents report this as 409 Conflict.
var ErrDuplicateAction = errors.New("action already scheduled")

// AgentInfoResponse is the body of GET /info/agent.
type AgentInfoResponse struct {
	Version types.AgentVersion `json:"version"`
}

// DatastoreInfoResponse is the body of GET /info/datastore.
type DatastoreInfoResponse struct {
	Kind       string            `json:"kind"`
	Version    string            `json:"version"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Status     string            `json:"status"`
}

// ShardsResponse is the body of GET /shards.
type ShardsResponse struct {
	Shards []ShardInfo `json:"shards"`
}

// ShardInfo is one shard entry reported by an agent.
type ShardInfo struct {
	ShardID      string             `json:"shard_id"`
	Role         types.ShardRole    `json:"role"`
	CommitOffset types.CommitOffset `json:"commit_offset"`
	Lag          *types.CommitOffset `json:"lag,omitempty"`
}

// RemoteAction is one action entry as reported by /actions/queue,
// /actions/finished, or GET /action/:id.
type RemoteAction struct {
	ActionID  string                 `json:"action_id"`
	Kind      string                 `json:"kind"`
	Args      map[string]interface{} `json:"args,omitempty"`
	State     string                 `json:"state"`
	CreatedTs time.Time              `json:"created_ts"`
}

// ActionScheduleRequest is the body of POST /action/:kind.
type ActionScheduleRequest struct {
	ActionID  string                 `json:"action_id"`
	Args      map[string]interface{} `json:"args,omitempty"`
	CreatedTs time.Time              `json:"created_ts"`
	Requester string                 `json:"requester"`
}

// NodeClient talks to the agent process running next to a datastore node.
type NodeClient struct {
	baseURL string
	http    *http.Client
}

// NewNodeClient builds a NodeClient for an agent reachable at baseURL.
func NewNodeClient(baseURL string, hc *http.Client) *NodeClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &NodeClient{baseURL: baseURL, http: hc}
}

func (c *NodeClient) get(ctx context.Context, path string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, &corerr.ClientConnect{Endpoint: c.baseURL + path, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, &corerr.ClientConnect{Endpoint: c.baseURL + path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode/100 != 2 {
		return false, &corerr.ClientResponse{Endpoint: c.baseURL + path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if out == nil {
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, &corerr.ClientResponse{Endpoint: c.baseURL + path, Err: err}
	}
	return true, nil
}

// AgentInfo fetches GET /info/agent.
func (c *NodeClient) AgentInfo(ctx context.Context) (*AgentInfoResponse, error) {
	var out AgentInfoResponse
	_, err := c.get(ctx, "/info/agent", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DatastoreInfo fetches GET /info/datastore.
func (c *NodeClient) DatastoreInfo(ctx context.Context) (*DatastoreInfoResponse, error) {
	var out DatastoreInfoResponse
	_, err := c.get(ctx, "/info/datastore", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Shards fetches GET /shards.
func (c *NodeClient) Shards(ctx context.Context) ([]ShardInfo, error) {
	var out ShardsResponse
	_, err := c.get(ctx, "/shards", &out)
	if err != nil {
		return nil, err
	}
	return out.Shards, nil
}

// ActionsQueue fetches GET /actions/queue: actions not yet terminal.
func (c *NodeClient) ActionsQueue(ctx context.Context) ([]RemoteAction, error) {
	var out struct {
		Actions []RemoteAction `json:"actions"`
	}
	_, err := c.get(ctx, "/actions/queue", &out)
	if err != nil {
		return nil, err
	}
	return out.Actions, nil
}

// ActionsFinished fetches GET /actions/finished: actions reaching a terminal state.
func (c *NodeClient) ActionsFinished(ctx context.Context) ([]RemoteAction, error) {
	var out struct {
		Actions []RemoteAction `json:"actions"`
	}
	_, err := c.get(ctx, "/actions/finished", &out)
	if err != nil {
		return nil, err
	}
	return out.Actions, nil
}

// Action fetches GET /action/:id. A 404 is not an error: it means the
// agent no longer tracks the action (spec.md §6), reported as (nil, nil).
func (c *NodeClient) Action(ctx context.Context, actionID string) (*RemoteAction, error) {
	var out RemoteAction
	found, err := c.get(ctx, "/action/"+actionID, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &out, nil
}

// ScheduleAction issues POST /action/:kind.
func (c *NodeClient) ScheduleAction(ctx context.Context, kind string, req ActionScheduleRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	url := c.baseURL + "/action/" + kind
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &corerr.ClientConnect{Endpoint: url, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &corerr.ClientConnect{Endpoint: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return ErrDuplicateAction
	}
	if resp.StatusCode/100 != 2 {
		return &corerr.ClientResponse{Endpoint: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}
