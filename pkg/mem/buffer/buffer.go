// Package buffer defines the short-term buffer contract: an ordered,
// append-only list of recent conversation turns per user.
package buffer

import (
	"context"

	"github.com/openclaw/memtier/pkg/mem"
)

// Store is the interface all short-term buffer adapters must implement.
//
// The store provides no transactional coupling between ReadAll and Clear;
// the promotion job owns the ordering of operations (store first, clear
// second) that makes clearing safe.
type Store interface {
	// Append adds a turn to the tail of the user's list. Appends are
	// always chronological tail-appends; readers still must not assume
	// physical order equals timestamp order.
	Append(ctx context.Context, userID string, turn mem.Turn) error

	// ReadAll returns the full buffer content for the user in insertion
	// order. Entries that fail to decode are skipped, not fatal.
	ReadAll(ctx context.Context, userID string) ([]mem.Turn, error)

	// Clear deletes the entire list for the user. Callers MUST have
	// confirmed durable storage of every turn they intend to drop.
	Clear(ctx context.Context, userID string) error

	// Len returns the number of buffered entries for the user.
	Len(ctx context.Context, userID string) (int, error)
}
