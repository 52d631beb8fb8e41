package buffer

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskplanner/domain"
)

var (
	pendingBucket = []byte("pending")
	deadBucket    = []byte("dead")
)

// Entry is an event waiting in the outbox together with its delivery bookkeeping.
type Entry struct {
	Event      domain.Event `json:"event"`
	Attempts   int          `json:"attempts"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
	LastError  string       `json:"last_error,omitempty"`

	key []byte
}

// Outbox persists task events in a BoltDB file until they reach the event log.
// Entries are kept in insertion order; entries that exhaust their retries move
// to a dead-letter bucket.
type Outbox struct {
	db *bolt.DB
}

// Open creates the BoltDB file (and its directory) and both buckets.
func Open(path string) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{pendingBucket, deadBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Outbox{db: db}, nil
}

// Enqueue appends an event behind everything already pending.
func (o *Outbox) Enqueue(event domain.Event) error {
	if o == nil || o.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return o.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		payload, err := json.Marshal(Entry{Event: event, EnqueuedAt: time.Now()})
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), payload)
	})
}

// Peek returns up to limit pending entries, oldest first, without removing them.
// Entries that no longer decode are moved to the dead-letter bucket as they are found.
func (o *Outbox) Peek(limit int) ([]Entry, error) {
	if o == nil || o.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var entries []Entry
	err := o.db.Update(func(tx *bolt.Tx) error {
		pending := tx.Bucket(pendingBucket)
		var corrupt [][]byte
		c := pending.Cursor()
		for k, v := c.First(); k != nil && len(entries) < limit; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				corrupt = append(corrupt, append([]byte(nil), k...))
				continue
			}
			entry.key = append([]byte(nil), k...)
			entries = append(entries, entry)
		}
		return moveKeys(pending, tx.Bucket(deadBucket), corrupt)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Ack removes delivered entries.
func (o *Outbox) Ack(entries ...Entry) error {
	if o == nil || o.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return o.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket)
		for _, e := range entries {
			if len(e.key) == 0 {
				continue
			}
			if err := b.Delete(e.key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Fail records a failed delivery. Once attempts reach maxAttempts the entry is
// moved to the dead-letter bucket and true is returned.
func (o *Outbox) Fail(entry Entry, cause error, maxAttempts int) (bool, error) {
	if o == nil || o.db == nil {
		return false, bolt.ErrDatabaseNotOpen
	}
	entry.Attempts++
	if cause != nil {
		entry.LastError = cause.Error()
	}
	dead := maxAttempts > 0 && entry.Attempts >= maxAttempts

	err := o.db.Update(func(tx *bolt.Tx) error {
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if !dead {
			return tx.Bucket(pendingBucket).Put(entry.key, payload)
		}
		if err := tx.Bucket(pendingBucket).Delete(entry.key); err != nil {
			return err
		}
		return tx.Bucket(deadBucket).Put(entry.key, payload)
	})
	return dead, err
}

// Size returns the number of pending entries.
func (o *Outbox) Size() (int, error) {
	return o.count(pendingBucket)
}

// DeadSize returns the number of dead-lettered entries.
func (o *Outbox) DeadSize() (int, error) {
	return o.count(deadBucket)
}

// Cleanup drops dead-lettered entries enqueued before olderThan, along with
// any that cannot be decoded.
func (o *Outbox) Cleanup(olderThan time.Time) error {
	if o == nil || o.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return o.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(deadBucket)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil || entry.EnqueuedAt.Before(olderThan) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the Bolt database.
func (o *Outbox) Close() error {
	if o == nil || o.db == nil {
		return nil
	}
	return o.db.Close()
}

func (o *Outbox) count(bucket []byte) (int, error) {
	if o == nil || o.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var n int
	err := o.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucket).Stats().KeyN
		return nil
	})
	return n, err
}

// moveKeys transfers the raw values under keys from one bucket to another.
func moveKeys(from, to *bolt.Bucket, keys [][]byte) error {
	for _, k := range keys {
		if err := to.Put(k, append([]byte(nil), from.Get(k)...)); err != nil {
			return err
		}
		if err := from.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
