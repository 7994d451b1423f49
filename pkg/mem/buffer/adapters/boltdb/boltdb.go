package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/mem"
)

// Bucket layout: one top-level bucket holds a sub-bucket per user, keyed
// by a monotonically increasing sequence number so iteration order is
// insertion order.
const buffersBucket = "buffers"

// BoltBuffer implements the buffer.Store interface using a BoltDB database.
type BoltBuffer struct {
	db *bolt.DB
}

// NewBoltBuffer creates a new BoltBuffer with the given database connection.
func NewBoltBuffer(db *bolt.DB) *BoltBuffer {
	store := &BoltBuffer{db: db}

	log.Debug("Initialized BoltDB short-term buffer",
		"db_path", db.Path(),
		"read_only", db.IsReadOnly(),
	)

	return store
}

// Open opens (or creates) a BoltDB file and wraps it in a BoltBuffer.
func Open(path string) (*BoltBuffer, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open buffer database: %w", err)
	}
	return NewBoltBuffer(db), nil
}

// Close closes the underlying database.
func (b *BoltBuffer) Close() error {
	return b.db.Close()
}

// getUserBucket gets or creates the sub-bucket for the specified user.
func getUserBucket(tx *bolt.Tx, userID string) (*bolt.Bucket, error) {
	buffers, err := tx.CreateBucketIfNotExists([]byte(buffersBucket))
	if err != nil {
		return nil, fmt.Errorf("failed to create buffers bucket: %w", err)
	}

	userBucket, err := buffers.CreateBucketIfNotExists([]byte(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer bucket for %s: %w", userID, err)
	}

	return userBucket, nil
}

// Append adds a turn to the tail of the user's list.
func (b *BoltBuffer) Append(ctx context.Context, userID string, turn mem.Turn) error {
	if userID == "" {
		return fmt.Errorf("append: user id cannot be empty")
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		userBucket, err := getUserBucket(tx, userID)
		if err != nil {
			return err
		}

		seq, err := userBucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return userBucket.Put(key, data)
	})

	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	return nil
}

// ReadAll returns the full buffer content for the user in insertion order.
func (b *BoltBuffer) ReadAll(ctx context.Context, userID string) ([]mem.Turn, error) {
	var turns []mem.Turn

	err := b.db.View(func(tx *bolt.Tx) error {
		userBucket := userBucketIfExists(tx, userID)
		if userBucket == nil {
			return nil
		}

		return userBucket.ForEach(func(k, v []byte) error {
			var turn mem.Turn
			if err := json.Unmarshal(v, &turn); err != nil {
				// Undecodable entries are skipped, never fatal.
				log.WarnContext(ctx, "Skipping undecodable buffer entry",
					"user_id", userID, "error", err)
				return nil
			}
			turns = append(turns, turn)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to read buffer: %w", err)
	}

	return turns, nil
}

// Clear deletes the entire list for the user.
func (b *BoltBuffer) Clear(ctx context.Context, userID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		buffers := tx.Bucket([]byte(buffersBucket))
		if buffers == nil {
			return nil
		}
		if buffers.Bucket([]byte(userID)) == nil {
			return nil
		}
		return buffers.DeleteBucket([]byte(userID))
	})

	if err != nil {
		return fmt.Errorf("failed to clear buffer: %w", err)
	}

	log.DebugContext(ctx, "Cleared short-term buffer", "user_id", userID)
	return nil
}

// Len returns the number of buffered entries for the user.
func (b *BoltBuffer) Len(ctx context.Context, userID string) (int, error) {
	var n int

	err := b.db.View(func(tx *bolt.Tx) error {
		userBucket := userBucketIfExists(tx, userID)
		if userBucket == nil {
			return nil
		}
		n = userBucket.Stats().KeyN
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count buffer entries: %w", err)
	}

	return n, nil
}

func userBucketIfExists(tx *bolt.Tx, userID string) *bolt.Bucket {
	buffers := tx.Bucket([]byte(buffersBucket))
	if buffers == nil {
		return nil
	}
	return buffers.Bucket([]byte(userID))
}
