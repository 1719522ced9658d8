package queue

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/replicante-io/replicore/pkg/corerr"
)

var cursorsBucket = []byte("cursors")

// BoltBroker is the bbolt-backed Task Queue broker: one bucket per topic
// (<queue>, <queue>_retry, <queue>_skip), offsets are monotonic uint64
// keys assigned by the bucket's built-in sequence, and a cursors bucket
// tracks the next offset each topic will read from, following the same
// embedded-storage shape as the teacher's pkg/storage.BoltStore.
type BoltBroker struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt-backed broker at dataDir/queue.db.
func Open(dataDir string) (*BoltBroker, error) {
	db, err := bolt.Open(filepath.Join(dataDir, "queue.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cursorsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltBroker{db: db}, nil
}

// Close closes the underlying database.
func (b *BoltBroker) Close() error { return b.db.Close() }

func primaryTopic(queue string) []byte { return []byte(queue) }
func retryTopic(queue string) []byte   { return []byte(queue + "_retry") }
func skipTopic(queue string) []byte    { return []byte(queue + "_skip") }

func (b *BoltBroker) ensureTopic(tx *bolt.Tx, topic []byte) (*bolt.Bucket, error) {
	return tx.CreateBucketIfNotExists(topic)
}

// Emit appends a new message to queue's primary topic (spec.md §4.3).
func (b *BoltBroker) Emit(queue, id string, payload interface{}, headers map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return &corerr.Backend{Op: "queue.emit", Err: err}
	}
	msg := message{ID: id, Payload: data, Headers: headers, Timestamp: time.Now()}
	if err := b.appendTo(primaryTopic(queue), msg); err != nil {
		return &corerr.Backend{Op: "queue.emit", Err: err}
	}
	return nil
}

// appendTo writes msg to topic under the next sequence number.
func (b *BoltBroker) appendTo(topic []byte, msg message) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := b.ensureTopic(tx, topic)
		if err != nil {
			return err
		}
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return bkt.Put(offsetKey(seq), data)
	})
}

func offsetKey(offset uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, offset)
	return k
}

func decodeOffset(k []byte) uint64 { return binary.BigEndian.Uint64(k) }

// cursor returns the next offset to read for a topic, defaulting to 0.
func (b *BoltBroker) cursor(tx *bolt.Tx, topic string) uint64 {
	bkt := tx.Bucket(cursorsBucket)
	v := bkt.Get([]byte(topic))
	if v == nil {
		return 0
	}
	return decodeOffset(v)
}

// commitCursor advances topic's cursor to offset+1, the "committed as
// offset + 1" rule from spec.md §4.3 (the broker resumes at the
// committed offset).
func (b *BoltBroker) commitCursor(topic string, offset uint64) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(cursorsBucket)
		return bkt.Put([]byte(topic), offsetKey(offset+1))
	})
}

// peek returns the oldest un-cursored message in topic, or ok=false if
// the topic has no message at or after the cursor.
func (b *BoltBroker) peek(topic []byte) (offset uint64, msg message, ok bool, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(topic)
		if bkt == nil {
			return nil
		}
		start := b.cursor(tx, string(topic))
		c := bkt.Cursor()
		k, v := c.Seek(offsetKey(start))
		if k == nil {
			return nil
		}
		if err := json.Unmarshal(v, &msg); err != nil {
			return err
		}
		offset = decodeOffset(k)
		ok = true
		return nil
	})
	return offset, msg, ok, err
}
