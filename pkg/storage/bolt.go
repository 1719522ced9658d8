package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketNamespaces         = []byte("namespaces")
	bucketPlatforms          = []byte("platforms")
	bucketDiscoverySettings  = []byte("discovery_settings")
	bucketClusterDiscoveries = []byte("cluster_discoveries")
	bucketClusterSpecs       = []byte("cluster_specs")
	bucketAgents             = []byte("agents")
	bucketAgentsInfo         = []byte("agents_info")
	bucketNodes              = []byte("nodes")
	bucketShards             = []byte("shards")
	bucketNodeActions        = []byte("node_actions")
	bucketOrchestratorActs   = []byte("orchestrator_actions")
	bucketClusterMeta        = []byte("cluster_meta")

	allBuckets = [][]byte{
		bucketNamespaces, bucketPlatforms, bucketDiscoverySettings,
		bucketClusterDiscoveries, bucketClusterSpecs, bucketAgents,
		bucketAgentsInfo, bucketNodes, bucketShards, bucketNodeActions,
		bucketOrchestratorActs, bucketClusterMeta,
	}
)

// BoltPrimaryStore implements PrimaryStore on top of a single bbolt file, one bucket
// per entity type keyed by its natural key (spec.md §6).
type BoltPrimaryStore struct {
	db *bolt.DB
}

// Open opens (creating if absent) the Primary store database under dataDir.
func Open(dataDir string) (*BoltPrimaryStore, error) {
	path := filepath.Join(dataDir, "replicore-primary.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, &corerr.Backend{Op: "storage.open", Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &corerr.Backend{Op: "storage.open", Err: err}
	}
	return &BoltPrimaryStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltPrimaryStore) Close() error { return s.db.Close() }

func put(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func get(tx *bolt.Tx, bucket []byte, key string, kind string, v interface{}) error {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return &corerr.NotFound{Kind: kind, Key: key}
	}
	return json.Unmarshal(data, v)
}

// --- Namespace ---

func (s *BoltPrimaryStore) PutNamespace(n *types.Namespace) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketNamespaces, n.NsID, n) })
}

func (s *BoltPrimaryStore) GetNamespace(nsID string) (*types.Namespace, error) {
	var n types.Namespace
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketNamespaces, nsID, "namespace", &n) })
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BoltPrimaryStore) ListNamespaces() ([]*types.Namespace, error) {
	var out []*types.Namespace
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNamespaces).ForEach(func(k, v []byte) error {
			var n types.Namespace
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			out = append(out, &n)
			return nil
		})
	})
	return out, err
}

// --- Platform ---

func (s *BoltPrimaryStore) PutPlatform(p *types.Platform) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketPlatforms, p.Key(), p) })
}

func (s *BoltPrimaryStore) GetPlatform(key string) (*types.Platform, error) {
	var p types.Platform
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketPlatforms, key, "platform", &p) })
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltPrimaryStore) ListPlatforms() ([]*types.Platform, error) {
	var out []*types.Platform
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlatforms).ForEach(func(k, v []byte) error {
			var p types.Platform
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltPrimaryStore) DuePlatforms(now time.Time) ([]*types.Platform, error) {
	all, err := s.ListPlatforms()
	if err != nil {
		return nil, err
	}
	var due []*types.Platform
	for _, p := range all {
		if p.IsDue(now) {
			due = append(due, p)
		}
	}
	return due, nil
}

// --- DiscoverySettings ---

func (s *BoltPrimaryStore) PutDiscoverySettings(d *types.DiscoverySettings) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketDiscoverySettings, d.Key(), d) })
}

func (s *BoltPrimaryStore) GetDiscoverySettings(key string) (*types.DiscoverySettings, error) {
	var d types.DiscoverySettings
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, bucketDiscoverySettings, key, "discovery_settings", &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *BoltPrimaryStore) DueDiscoverySettings(now time.Time) ([]*types.DiscoverySettings, error) {
	var due []*types.DiscoverySettings
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDiscoverySettings).ForEach(func(k, v []byte) error {
			var d types.DiscoverySettings
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.IsDue(now) {
				due = append(due, &d)
			}
			return nil
		})
	})
	return due, err
}

// --- ClusterDiscovery ---

func clusterDiscoveryKey(nsID, clusterID string) string { return nsID + "/" + clusterID }

func (s *BoltPrimaryStore) PutClusterDiscovery(d *types.ClusterDiscovery) error {
	key := clusterDiscoveryKey(d.NsID, d.ClusterID)
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketClusterDiscoveries, key, d) })
}

func (s *BoltPrimaryStore) GetClusterDiscovery(nsID, clusterID string) (*types.ClusterDiscovery, error) {
	var d types.ClusterDiscovery
	key := clusterDiscoveryKey(nsID, clusterID)
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, bucketClusterDiscoveries, key, "cluster_discovery", &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// --- ClusterSpec ---

func (s *BoltPrimaryStore) PutClusterSpec(c *types.ClusterSpec) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketClusterSpecs, c.Key(), c) })
}

func (s *BoltPrimaryStore) GetClusterSpec(nsID, clusterID string) (*types.ClusterSpec, error) {
	var c types.ClusterSpec
	key := nsID + "/" + clusterID
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketClusterSpecs, key, "cluster_spec", &c) })
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *BoltPrimaryStore) ListClusterSpecs() ([]*types.ClusterSpec, error) {
	var out []*types.ClusterSpec
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusterSpecs).ForEach(func(k, v []byte) error {
			var c types.ClusterSpec
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, &c)
			return nil
		})
	})
	return out, err
}

func (s *BoltPrimaryStore) DueClusterSpecs(now time.Time) ([]*types.ClusterSpec, error) {
	all, err := s.ListClusterSpecs()
	if err != nil {
		return nil, err
	}
	var due []*types.ClusterSpec
	for _, c := range all {
		if c.IsDue(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

// SearchClusterSpecs returns every cluster whose cluster_id contains substring.
func (s *BoltPrimaryStore) SearchClusterSpecs(substring string) ([]*types.ClusterSpec, error) {
	all, err := s.ListClusterSpecs()
	if err != nil {
		return nil, err
	}
	var out []*types.ClusterSpec
	for _, c := range all {
		if strings.Contains(c.ClusterID, substring) {
			out = append(out, c)
		}
	}
	return out, nil
}

// TopClusterSpecsByShards returns the n busiest clusters, ranked by
// shards_count desc then nodes desc (spec.md §6), using each cluster's
// last-aggregated ClusterMeta.
func (s *BoltPrimaryStore) TopClusterSpecsByShards(n int) ([]*types.ClusterMeta, error) {
	var all []*types.ClusterMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusterMeta).ForEach(func(k, v []byte) error {
			var m types.ClusterMeta
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			all = append(all, &m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ShardsCount != all[j].ShardsCount {
			return all[i].ShardsCount > all[j].ShardsCount
		}
		return all[i].Nodes > all[j].Nodes
	})
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// --- Agent ---

func (s *BoltPrimaryStore) PutAgent(a *types.Agent) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketAgents, a.Key(), a) })
}

func (s *BoltPrimaryStore) GetAgent(key string) (*types.Agent, error) {
	var a types.Agent
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketAgents, key, "agent", &a) })
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BoltPrimaryStore) ListAgents(clusterID string) ([]*types.Agent, error) {
	var out []*types.Agent
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAgents).ForEach(func(k, v []byte) error {
			var a types.Agent
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.ClusterID == clusterID {
				out = append(out, &a)
			}
			return nil
		})
	})
	return out, err
}

// --- AgentInfo ---

func (s *BoltPrimaryStore) PutAgentInfo(a *types.AgentInfo) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketAgentsInfo, a.Key(), a) })
}

func (s *BoltPrimaryStore) GetAgentInfo(key string) (*types.AgentInfo, error) {
	var a types.AgentInfo
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketAgentsInfo, key, "agent_info", &a) })
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BoltPrimaryStore) ListAgentInfo(clusterID string) ([]*types.AgentInfo, error) {
	var out []*types.AgentInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAgentsInfo).ForEach(func(k, v []byte) error {
			var a types.AgentInfo
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.ClusterID == clusterID {
				out = append(out, &a)
			}
			return nil
		})
	})
	return out, err
}

// --- Node ---

func (s *BoltPrimaryStore) PutNode(n *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketNodes, n.Key(), n) })
}

func (s *BoltPrimaryStore) GetNode(key string) (*types.Node, error) {
	var n types.Node
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketNodes, key, "node", &n) })
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BoltPrimaryStore) ListNodes(clusterID string) ([]*types.Node, error) {
	var out []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var n types.Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if n.ClusterID == clusterID {
				out = append(out, &n)
			}
			return nil
		})
	})
	return out, err
}

// --- Shard ---

func (s *BoltPrimaryStore) PutShard(sh *types.Shard) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketShards, sh.Key(), sh) })
}

func (s *BoltPrimaryStore) GetShard(key string) (*types.Shard, error) {
	var sh types.Shard
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketShards, key, "shard", &sh) })
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *BoltPrimaryStore) ListShards(clusterID string) ([]*types.Shard, error) {
	var out []*types.Shard
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketShards).ForEach(func(k, v []byte) error {
			var sh types.Shard
			if err := json.Unmarshal(v, &sh); err != nil {
				return err
			}
			if sh.ClusterID == clusterID {
				out = append(out, &sh)
			}
			return nil
		})
	})
	return out, err
}

// --- NodeAction ---

func (s *BoltPrimaryStore) PutNodeAction(a *types.NodeAction) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketNodeActions, a.Key(), a) })
}

func (s *BoltPrimaryStore) GetNodeAction(key string) (*types.NodeAction, error) {
	var a types.NodeAction
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketNodeActions, key, "node_action", &a) })
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BoltPrimaryStore) ListNodeActions(clusterID string) ([]*types.NodeAction, error) {
	var out []*types.NodeAction
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodeActions).ForEach(func(k, v []byte) error {
			var a types.NodeAction
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.ClusterID == clusterID {
				out = append(out, &a)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltPrimaryStore) ListUnfinishedNodeActions(clusterID string) ([]*types.NodeAction, error) {
	all, err := s.ListNodeActions(clusterID)
	if err != nil {
		return nil, err
	}
	var out []*types.NodeAction
	for _, a := range all {
		if !a.State.IsTerminal() {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- OrchestratorAction ---

func (s *BoltPrimaryStore) PutOrchestratorAction(a *types.OrchestratorAction) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketOrchestratorActs, a.Key(), a) })
}

func (s *BoltPrimaryStore) GetOrchestratorAction(key string) (*types.OrchestratorAction, error) {
	var a types.OrchestratorAction
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, bucketOrchestratorActs, key, "orchestrator_action", &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BoltPrimaryStore) ListUnfinishedOrchestratorActions(clusterID string) ([]*types.OrchestratorAction, error) {
	var out []*types.OrchestratorAction
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOrchestratorActs).ForEach(func(k, v []byte) error {
			var a types.OrchestratorAction
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.ClusterID == clusterID && !a.State.IsTerminal() {
				out = append(out, &a)
			}
			return nil
		})
	})
	return out, err
}

// --- ClusterMeta ---

func (s *BoltPrimaryStore) PutClusterMeta(m *types.ClusterMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketClusterMeta, m.Key(), m) })
}

func (s *BoltPrimaryStore) GetClusterMeta(clusterID string) (*types.ClusterMeta, error) {
	var m types.ClusterMeta
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketClusterMeta, clusterID, "cluster_meta", &m) })
	if err != nil {
		return nil, err
	}
	return &m, nil
}

var _ PrimaryStore = (*BoltPrimaryStore)(nil)
