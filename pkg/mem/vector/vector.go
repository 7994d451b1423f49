// Package vector defines the durable vector store contract shared by the
// promotion, fact-extraction and retrieval components.
package vector

import (
	"context"

	"github.com/openclaw/memtier/pkg/mem"
)

// Filter narrows searches and scrolls by payload fields. Zero-valued
// fields are ignored.
type Filter struct {
	// UserID restricts to one user's memories
	UserID string

	// ContentHash restricts to points produced from one exchange
	ContentHash string

	// Tag restricts to points carrying the tag
	Tag string

	// SourceType restricts to one producer kind (e.g. system summaries)
	SourceType mem.SourceType
}

// Query configures a similarity search.
type Query struct {
	// Limit is the maximum number of results to return
	Limit int

	// Filter narrows the candidate set before ranking
	Filter Filter
}

// ScoredPoint is a search hit with its similarity score.
type ScoredPoint struct {
	Point mem.MemoryPoint
	Score float32
}

// Store is the interface all vector store adapters must implement.
type Store interface {
	// Upsert writes the points as one batch. Either all points in the
	// batch are acknowledged or the call returns an error.
	Upsert(ctx context.Context, points []mem.MemoryPoint) error

	// Search ranks stored points by similarity to the query vector,
	// restricted by the query filter, best match first.
	Search(ctx context.Context, queryVector []float32, q Query) ([]ScoredPoint, error)

	// Scroll lists points matching the filter without ranking.
	Scroll(ctx context.Context, f Filter, limit int) ([]mem.MemoryPoint, error)

	// SetPayload merges the given fields into an existing point's
	// payload. Used for access tracking only.
	SetPayload(ctx context.Context, id string, fields map[string]interface{}) error

	// Delete removes the points by ID. Deleting an unknown ID is not an
	// error.
	Delete(ctx context.Context, ids []string) error
}
