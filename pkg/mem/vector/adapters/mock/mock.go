// Package mock provides an in-memory vector.Store for testing.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/mem/vector"
)

// MockStore implements the vector.Store interface in memory with cosine
// similarity and per-hash failure injection.
type MockStore struct {
	mu      sync.RWMutex
	points  map[string]mem.MemoryPoint
	upserts int

	// UpsertErr forces every Upsert to fail.
	UpsertErr error

	// failHashes forces Upsert to fail for batches containing a point
	// with one of these content hashes.
	failHashes map[string]bool
}

// NewMockStore creates an empty in-memory vector store.
func NewMockStore() *MockStore {
	return &MockStore{
		points:     make(map[string]mem.MemoryPoint),
		failHashes: make(map[string]bool),
	}
}

// FailUpsertFor makes any batch containing a point with the given content
// hash fail, simulating a partial-batch infrastructure error.
func (m *MockStore) FailUpsertFor(contentHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failHashes[contentHash] = true
}

// UpsertCount returns the number of successful upsert batches.
func (m *MockStore) UpsertCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts
}

// Points returns a copy of all stored points.
func (m *MockStore) Points() []mem.MemoryPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]mem.MemoryPoint, 0, len(m.points))
	for _, p := range m.points {
		out = append(out, p)
	}
	return out
}

func matches(p mem.Payload, f vector.Filter) bool {
	if f.UserID != "" && p.UserID != f.UserID {
		return false
	}
	if f.ContentHash != "" && p.ContentHash != f.ContentHash {
		return false
	}
	if f.Tag != "" && !p.HasTag(f.Tag) {
		return false
	}
	if f.SourceType != "" && p.SourceType != f.SourceType {
		return false
	}
	return true
}

// Upsert stores the batch, or fails entirely if injected to do so.
func (m *MockStore) Upsert(ctx context.Context, points []mem.MemoryPoint) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range points {
		if m.failHashes[p.Payload.ContentHash] {
			return fmt.Errorf("injected upsert failure for hash %s", p.Payload.ContentHash)
		}
	}
	for _, p := range points {
		m.points[p.ID] = p
	}
	m.upserts++
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Search ranks stored points by cosine similarity.
func (m *MockStore) Search(ctx context.Context, queryVector []float32, q vector.Query) ([]vector.ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	var results []vector.ScoredPoint
	for _, p := range m.points {
		if !matches(p.Payload, q.Filter) {
			continue
		}
		results = append(results, vector.ScoredPoint{
			Point: p,
			Score: cosine(queryVector, p.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Scroll lists points matching the filter without ranking.
func (m *MockStore) Scroll(ctx context.Context, f vector.Filter, limit int) ([]mem.MemoryPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var out []mem.MemoryPoint
	for _, p := range m.points {
		if !matches(p.Payload, f) {
			continue
		}
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Delete removes the points by ID. Unknown IDs are ignored.
func (m *MockStore) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

// SetPayload merges the given fields into an existing point's payload.
func (m *MockStore) SetPayload(ctx context.Context, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	point, ok := m.points[id]
	if !ok {
		return fmt.Errorf("point %s not found", id)
	}

	// Apply the partial patch through JSON, matching remote store behavior.
	current, err := json.Marshal(point.Payload)
	if err != nil {
		return err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(current, &raw); err != nil {
		return err
	}
	for k, v := range fields {
		raw[k] = v
	}
	patched, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var payload mem.Payload
	if err := json.Unmarshal(patched, &payload); err != nil {
		return err
	}

	point.Payload = payload
	m.points[id] = point
	return nil
}
