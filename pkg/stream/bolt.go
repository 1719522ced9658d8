package stream

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/metrics"
)

var (
	recordsBucket    = []byte("records")
	byPartitionIndex = []byte("by_partition")
	offsetsBucket    = []byte("offsets")
)

// storedRecord is the on-disk envelope: the Record plus its partition key.
type storedRecord struct {
	Record    Record `json:"record"`
	Partition string `json:"partition"`
}

// BoltStream is the bbolt-backed append-only Stream broker (spec.md
// §4.4), generalising the same embedded-storage idiom pkg/queue and the
// teacher's pkg/storage.BoltStore use: one bucket of sequence-keyed
// records, a secondary per-partition index, and a per-consumer-group
// offsets bucket.
type BoltStream struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt-backed stream at dataDir/stream.db.
func Open(dataDir string) (*BoltStream, error) {
	db, err := bolt.Open(filepath.Join(dataDir, "stream.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open stream db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{recordsBucket, byPartitionIndex, offsetsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStream{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStream) Close() error { return s.db.Close() }

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func decodeSeq(k []byte) uint64 { return binary.BigEndian.Uint64(k) }

// Append writes a record keyed by p's partition key (spec.md §4.4:
// "Emission keys messages by entity_id.partition_key()").
func (s *BoltStream) Append(record Record, p Partitioned) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(recordsBucket)
		seq, err := records.NextSequence()
		if err != nil {
			return err
		}
		stored := storedRecord{Record: record, Partition: p.PartitionKey()}
		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := records.Put(seqKey(seq), data); err != nil {
			return err
		}

		index := tx.Bucket(byPartitionIndex)
		partitionBkt, err := index.CreateBucketIfNotExists([]byte(stored.Partition))
		if err != nil {
			return err
		}
		return partitionBkt.Put(seqKey(seq), nil)
	})
	if err != nil {
		return &corerr.Backend{Op: "stream.append", Err: err}
	}
	metrics.StreamAppendedTotal.WithLabelValues(record.Code).Inc()
	return nil
}

// groupOffset returns the next sequence a consumer group will read.
func (s *BoltStream) groupOffset(tx *bolt.Tx, group string) uint64 {
	v := tx.Bucket(offsetsBucket).Get([]byte(group))
	if v == nil {
		return 0
	}
	return decodeSeq(v)
}

// commitOffset advances group's offset to seq+1.
func (s *BoltStream) commitOffset(group string, seq uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(offsetsBucket).Put([]byte(group), seqKey(seq+1))
	})
}

// fetchNext returns the next record at or after group's committed
// offset, or ok=false if the stream has nothing new.
func (s *BoltStream) fetchNext(group string) (seq uint64, rec storedRecord, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		start := s.groupOffset(tx, group)
		records := tx.Bucket(recordsBucket)
		c := records.Cursor()
		k, v := c.Seek(seqKey(start))
		if k == nil {
			return nil
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		seq = decodeSeq(k)
		ok = true
		return nil
	})
	return seq, rec, ok, err
}
