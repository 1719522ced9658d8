package storage

import (
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/stream"
	bolt "go.etcd.io/bbolt"
)

var bucketRecentEvents = []byte("recent_events")

// clusterEvents is the capped, newest-first feed stored under one
// cluster's key in bucketRecentEvents.
type clusterEvents struct {
	Events []stream.Record `json:"events"`
}

// BoltViewStore implements ViewStore on its own bbolt file, separate
// from the Primary store's, matching spec.md §6's "primary holds
// authoritative state, view holds derived projections" ownership split.
type BoltViewStore struct {
	db *bolt.DB
}

// OpenView opens (creating if absent) the View store database under dataDir.
func OpenView(dataDir string) (*BoltViewStore, error) {
	path := filepath.Join(dataDir, "replicore-view.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, &corerr.Backend{Op: "view.open", Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecentEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &corerr.Backend{Op: "view.open", Err: err}
	}
	return &BoltViewStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltViewStore) Close() error { return s.db.Close() }

func (s *BoltViewStore) RecordEvent(clusterID string, event stream.Record, maxPerCluster int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecentEvents)
		var ce clusterEvents
		if data := b.Get([]byte(clusterID)); data != nil {
			if err := json.Unmarshal(data, &ce); err != nil {
				return err
			}
		}
		ce.Events = append([]stream.Record{event}, ce.Events...)
		if maxPerCluster > 0 && len(ce.Events) > maxPerCluster {
			ce.Events = ce.Events[:maxPerCluster]
		}
		data, err := json.Marshal(ce)
		if err != nil {
			return err
		}
		return b.Put([]byte(clusterID), data)
	})
}

func (s *BoltViewStore) RecentEvents(clusterID string) ([]stream.Record, error) {
	var ce clusterEvents
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecentEvents).Get([]byte(clusterID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &ce)
	})
	if err != nil {
		return nil, err
	}
	// Events are already stored newest-first; guard against any future
	// writer that appends out of order.
	sort.SliceStable(ce.Events, func(i, j int) bool { return ce.Events[i].Time.After(ce.Events[j].Time) })
	return ce.Events, nil
}

var _ ViewStore = (*BoltViewStore)(nil)
