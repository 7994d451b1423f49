// Package qdrant implements the vector.Store interface against the Qdrant
// REST API. Only the point operations the memory pipeline needs are
// covered: upsert, search, scroll, payload update and delete, plus
// collection creation on startup.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openclaw/memtier/pkg/errors"
	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/mem/vector"
)

// Per-operation timeouts. Batch upserts get the longest window since they
// carry many vectors; payload updates are fire-and-forget and get the
// shortest.
const (
	upsertTimeout  = 60 * time.Second
	searchTimeout  = 30 * time.Second
	scrollTimeout  = 30 * time.Second
	payloadTimeout = 5 * time.Second
)

// Config contains the configuration for a Qdrant adapter.
type Config struct {
	// URL is the Qdrant server base URL, e.g. "http://127.0.0.1:6333"
	URL string

	// Collection is the collection holding memory points
	Collection string

	// Dimensions is the embedding size used when creating the collection
	Dimensions int
}

// QdrantStore implements the vector.Store interface over Qdrant's REST API.
type QdrantStore struct {
	cfg    Config
	client *http.Client
}

// NewQdrantStore creates a new Qdrant adapter.
func NewQdrantStore(cfg Config) (*QdrantStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant URL cannot be empty")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection cannot be empty")
	}

	return &QdrantStore{
		cfg:    cfg,
		client: &http.Client{},
	}, nil
}

// Wire types matching Qdrant's REST schema.

type matchValue struct {
	Value interface{} `json:"value"`
}

type matchClause struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type wireFilter struct {
	Must []matchClause `json:"must"`
}

type scoredWirePoint struct {
	ID      string      `json:"id"`
	Score   float32     `json:"score"`
	Payload mem.Payload `json:"payload"`
}

type wirePoint struct {
	ID      string      `json:"id"`
	Payload mem.Payload `json:"payload"`
}

func buildFilter(f vector.Filter) *wireFilter {
	var must []matchClause
	if f.UserID != "" {
		must = append(must, matchClause{Key: "user_id", Match: matchValue{Value: f.UserID}})
	}
	if f.ContentHash != "" {
		must = append(must, matchClause{Key: "content_hash", Match: matchValue{Value: f.ContentHash}})
	}
	if f.Tag != "" {
		must = append(must, matchClause{Key: "tags", Match: matchValue{Value: f.Tag}})
	}
	if f.SourceType != "" {
		must = append(must, matchClause{Key: "source_type", Match: matchValue{Value: string(f.SourceType)}})
	}
	if len(must) == 0 {
		return nil
	}
	return &wireFilter{Must: must}
}

// do performs one JSON request/response round trip against the collection API.
func (q *QdrantStore) do(ctx context.Context, method, path string, timeout time.Duration, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s%s", q.cfg.URL, q.cfg.Collection, path)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrVectorStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Upsert writes the points as one batch, waiting for durability.
func (q *QdrantStore) Upsert(ctx context.Context, points []mem.MemoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	body := map[string]interface{}{"points": points}
	var resp struct {
		Status string `json:"status"`
	}
	if err := q.do(ctx, http.MethodPut, "/points?wait=true", upsertTimeout, body, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("qdrant upsert: unexpected status %q", resp.Status)
	}

	log.DebugContext(ctx, "Upserted points to Qdrant",
		"collection", q.cfg.Collection, "count", len(points))
	return nil
}

// Search ranks stored points by similarity to the query vector.
func (q *QdrantStore) Search(ctx context.Context, queryVector []float32, query vector.Query) ([]vector.ScoredPoint, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}

	body := map[string]interface{}{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(query.Filter); f != nil {
		body["filter"] = f
	}

	var resp struct {
		Result []scoredWirePoint `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, "/points/search", searchTimeout, body, &resp); err != nil {
		return nil, err
	}

	results := make([]vector.ScoredPoint, 0, len(resp.Result))
	for _, p := range resp.Result {
		results = append(results, vector.ScoredPoint{
			Point: mem.MemoryPoint{ID: p.ID, Payload: p.Payload},
			Score: p.Score,
		})
	}
	return results, nil
}

// Scroll lists points matching the filter without ranking.
func (q *QdrantStore) Scroll(ctx context.Context, f vector.Filter, limit int) ([]mem.MemoryPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	body := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
	}
	if wf := buildFilter(f); wf != nil {
		body["filter"] = wf
	}

	var resp struct {
		Result struct {
			Points []wirePoint `json:"points"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, "/points/scroll", scrollTimeout, body, &resp); err != nil {
		return nil, err
	}

	points := make([]mem.MemoryPoint, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		points = append(points, mem.MemoryPoint{ID: p.ID, Payload: p.Payload})
	}
	return points, nil
}

// SetPayload merges the given fields into an existing point's payload.
func (q *QdrantStore) SetPayload(ctx context.Context, id string, fields map[string]interface{}) error {
	body := map[string]interface{}{
		"points": []map[string]interface{}{
			{"id": id, "payload": fields},
		},
	}
	return q.do(ctx, http.MethodPut, "/points/payload?wait=true", payloadTimeout, body, nil)
}

// Delete removes the points by ID.
func (q *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]interface{}{"points": ids}
	var resp struct {
		Status string `json:"status"`
	}
	return q.do(ctx, http.MethodPost, "/points/delete?wait=true", upsertTimeout, body, &resp)
}

// EnsureCollection creates the collection with cosine distance if it does
// not already exist.
func (q *QdrantStore) EnsureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/collections/%s", q.cfg.URL, q.cfg.Collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrVectorStoreUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	dims := q.cfg.Dimensions
	if dims <= 0 {
		dims = 1024
	}
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dims,
			"distance": "Cosine",
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrVectorStoreUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant create collection: status %d: %s", resp.StatusCode, msg)
	}

	log.InfoContext(ctx, "Created Qdrant collection",
		"collection", q.cfg.Collection, "dimensions", dims)
	return nil
}
