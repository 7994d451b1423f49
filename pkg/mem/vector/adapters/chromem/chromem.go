// Package chromem implements the vector.Store interface on top of the
// embedded chromem-go database. It is the zero-infrastructure backend:
// suitable for development, offline use and tests, not for sharing a
// store between processes.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/mem/vector"
)

// Config contains the configuration for a chromem adapter.
type Config struct {
	// Collection is the collection name to use
	Collection string

	// StoragePath enables on-disk persistence; empty means in-memory
	StoragePath string
}

// ChromemStore implements the vector.Store interface using chromem-go.
//
// chromem-go only answers similarity queries, so the adapter keeps a
// payload index on the side to serve Scroll and SetPayload. When the
// database is persistent, the index's document IDs are written to a file
// next to the database and the index is rebuilt from the stored documents
// at startup. chromem ignores user-placed files in its storage directory.
type ChromemStore struct {
	collection *chromemgo.Collection
	indexPath  string

	mu     sync.RWMutex
	points map[string]mem.MemoryPoint
}

// NewChromemStore creates a new chromem-backed store.
func NewChromemStore(cfg Config) (*ChromemStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("chromem collection cannot be empty")
	}

	var db *chromemgo.DB
	var err error
	if cfg.StoragePath != "" {
		db, err = chromemgo.NewPersistentDB(cfg.StoragePath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open persistent chromem db: %w", err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	// Embeddings are always supplied by the caller, so no embedding
	// function is registered on the collection.
	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem collection: %w", err)
	}

	store := &ChromemStore{
		collection: collection,
		points:     make(map[string]mem.MemoryPoint),
	}
	if cfg.StoragePath != "" {
		store.indexPath = filepath.Join(cfg.StoragePath, cfg.Collection+".ids.json")
		if err := store.loadIndex(context.Background()); err != nil {
			return nil, err
		}
	}

	log.Debug("Initialized chromem vector store",
		"collection", cfg.Collection,
		"persistent", cfg.StoragePath != "",
		"indexed", len(store.points),
	)
	return store, nil
}

// loadIndex rebuilds the payload index from the persisted documents named
// by the ID file. Stale or undecodable entries are dropped.
func (s *ChromemStore) loadIndex(ctx context.Context) error {
	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read payload index: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("failed to decode payload index: %w", err)
	}

	for _, id := range ids {
		doc, err := s.collection.GetByID(ctx, id)
		if err != nil {
			log.Warn("Dropping stale payload index entry", "id", id, "error", err)
			continue
		}
		var payload mem.Payload
		if err := json.Unmarshal([]byte(doc.Content), &payload); err != nil {
			log.Warn("Skipping undecodable chromem document", "id", id, "error", err)
			continue
		}
		s.points[id] = mem.MemoryPoint{ID: id, Vector: doc.Embedding, Payload: payload}
	}
	return nil
}

// saveIndex writes the current ID set. The caller must hold s.mu.
func (s *ChromemStore) saveIndex() error {
	if s.indexPath == "" {
		return nil
	}

	ids := make([]string, 0, len(s.points))
	for id := range s.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode payload index: %w", err)
	}
	if err := os.WriteFile(s.indexPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write payload index: %w", err)
	}
	return nil
}

func metadataFor(p mem.Payload) map[string]string {
	md := map[string]string{
		"user_id":     p.UserID,
		"source_type": string(p.SourceType),
		"date":        p.Date,
	}
	if p.ContentHash != "" {
		md["content_hash"] = p.ContentHash
	}
	for _, t := range p.Tags {
		md["tag:"+t] = "1"
	}
	return md
}

func whereFor(f vector.Filter) map[string]string {
	where := make(map[string]string)
	if f.UserID != "" {
		where["user_id"] = f.UserID
	}
	if f.ContentHash != "" {
		where["content_hash"] = f.ContentHash
	}
	if f.Tag != "" {
		where["tag:"+f.Tag] = "1"
	}
	if f.SourceType != "" {
		where["source_type"] = string(f.SourceType)
	}
	if len(where) == 0 {
		return nil
	}
	return where
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

// Upsert writes the points as one batch.
func (s *ChromemStore) Upsert(ctx context.Context, points []mem.MemoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	for _, point := range points {
		content, err := json.Marshal(point.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}

		doc := chromemgo.Document{
			ID:        point.ID,
			Content:   string(content),
			Embedding: point.Vector,
			Metadata:  metadataFor(point.Payload),
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to add document %s: %w", point.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, point := range points {
		s.points[point.ID] = point
	}
	return s.saveIndex()
}

// Search ranks stored points by similarity to the query vector.
func (s *ChromemStore) Search(ctx context.Context, queryVector []float32, q vector.Query) ([]vector.ScoredPoint, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	// chromem rejects nResults larger than the collection size.
	if count := s.collection.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, queryVector, limit, whereFor(q.Filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query failed: %w", err)
	}

	scored := make([]vector.ScoredPoint, 0, len(results))
	for _, r := range results {
		var payload mem.Payload
		if err := json.Unmarshal([]byte(r.Content), &payload); err != nil {
			log.WarnContext(ctx, "Skipping undecodable chromem document", "id", r.ID, "error", err)
			continue
		}
		scored = append(scored, vector.ScoredPoint{
			Point: mem.MemoryPoint{ID: r.ID, Payload: payload},
			Score: r.Similarity,
		})
	}
	return scored, nil
}

// Scroll lists points matching the filter without ranking.
func (s *ChromemStore) Scroll(ctx context.Context, f vector.Filter, limit int) ([]mem.MemoryPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []mem.MemoryPoint
	for _, p := range s.points {
		if !matches(p.Payload, f) {
			continue
		}
		out = append(out, mem.MemoryPoint{ID: p.ID, Payload: p.Payload})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Delete removes the points by ID. Unknown IDs are ignored.
func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("chromem delete failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.points, id)
	}
	return s.saveIndex()
}

// SetPayload merges access-tracking fields into an existing point's payload.
func (s *ChromemStore) SetPayload(ctx context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	point, ok := s.points[id]
	if !ok {
		return fmt.Errorf("point %s not found", id)
	}

	// Round-trip through JSON so partial field maps merge onto the
	// typed payload the same way a remote store would apply them.
	merged, err := json.Marshal(point.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(merged, &raw); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	for k, v := range fields {
		raw[k] = v
	}
	patched, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	var payload mem.Payload
	if err := json.Unmarshal(patched, &payload); err != nil {
		return fmt.Errorf("failed to apply payload patch: %w", err)
	}

	point.Payload = payload
	s.points[id] = point

	doc := chromemgo.Document{
		ID:        point.ID,
		Content:   string(patched),
		Embedding: point.Vector,
		Metadata:  metadataFor(point.Payload),
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}
