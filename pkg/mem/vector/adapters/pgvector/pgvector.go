// Package pgvector implements the vector.Store interface using PostgreSQL
// with the pgvector extension. Points live in one table with the payload
// stored as JSONB, so filterable fields stay queryable without schema
// churn.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/mem/vector"
)

// Config contains the configuration for a pgvector adapter.
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// TableName is the name of the table to use
	TableName string

	// Dimensions is the size of vector embeddings
	Dimensions int
}

// PgvectorStore implements the vector.Store interface using PostgreSQL
// with the pgvector extension. Similarity is cosine.
type PgvectorStore struct {
	db         *pgxpool.Pool
	tableName  string
	dimensions int
}

// NewPgvectorStore creates a new pgvector adapter and initializes its table.
func NewPgvectorStore(ctx context.Context, cfg Config) (*PgvectorStore, error) {
	if cfg.ConnectionString == "" {
		return nil, errors.New("connection string cannot be empty")
	}
	if cfg.TableName == "" {
		cfg.TableName = "memory_points"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1024
	}

	db, err := pgxpool.New(ctx, cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PgvectorStore{
		db:         db,
		tableName:  cfg.TableName,
		dimensions: cfg.Dimensions,
	}

	if err := store.initializeTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize pgvector table: %w", err)
	}

	return store, nil
}

// initializeTable creates the table and indices for vector storage if they
// don't exist.
func (s *PgvectorStore) initializeTable(ctx context.Context) error {
	var extensionExists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&extensionExists)
	if err != nil {
		return fmt.Errorf("failed to check for pgvector extension: %w", err)
	}

	if !extensionExists {
		_, err = s.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
		if err != nil {
			return fmt.Errorf("failed to create pgvector extension: %w", err)
		}
		log.Info("Created pgvector extension")
	}

	_, err = s.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			source_type TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL DEFAULT '{}',
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		)
	`, s.tableName, s.dimensions))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indices := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_user_id_idx ON %s (user_id)", s.tableName, s.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_content_hash_idx ON %s (user_id, content_hash)", s.tableName, s.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_tags_idx ON %s USING gin ((payload->'tags'))", s.tableName, s.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)", s.tableName, s.tableName),
	}
	for _, idx := range indices {
		if _, err := s.db.Exec(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Close closes the database connection pool.
func (s *PgvectorStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// embedToString converts an embedding to the pgvector literal format.
func embedToString(embedding []float32) string {
	elements := make([]string, len(embedding))
	for i, v := range embedding {
		elements[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(elements, ",") + "]"
}

// buildWhereClause translates a filter into SQL conditions and arguments.
func buildWhereClause(f vector.Filter, startArg int) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	arg := startArg

	add := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, arg))
		args = append(args, value)
		arg++
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.ContentHash != "" {
		add("content_hash = $%d", f.ContentHash)
	}
	if f.SourceType != "" {
		add("source_type = $%d", string(f.SourceType))
	}
	if f.Tag != "" {
		tagJSON, _ := json.Marshal([]string{f.Tag})
		add("payload->'tags' @> $%d::jsonb", string(tagJSON))
	}

	if len(conditions) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conditions, " AND "), args
}

// Upsert writes the points as one batch inside a transaction.
func (s *PgvectorStore) Upsert(ctx context.Context, points []mem.MemoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, content_hash, source_type, payload, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			embedding = EXCLUDED.embedding
	`, s.tableName)

	for _, point := range points {
		if len(point.Vector) != s.dimensions {
			return fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(point.Vector), s.dimensions)
		}

		payload, err := json.Marshal(point.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}

		_, err = tx.Exec(ctx, sql,
			point.ID,
			point.Payload.UserID,
			point.Payload.ContentHash,
			string(point.Payload.SourceType),
			payload,
			embedToString(point.Vector),
			point.Payload.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", point.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	log.DebugContext(ctx, "Upserted points to pgvector",
		"table", s.tableName, "count", len(points))
	return nil
}

// Search ranks stored points by cosine similarity to the query vector.
func (s *PgvectorStore) Search(ctx context.Context, queryVector []float32, q vector.Query) ([]vector.ScoredPoint, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	whereClause, args := buildWhereClause(q.Filter, 1)
	args = append(args, embedToString(queryVector))
	embeddingArg := len(args)

	sqlQuery := fmt.Sprintf(`
		SELECT id, payload, 1 - (embedding <=> $%d) AS score
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $%d
		LIMIT %d
	`, embeddingArg, s.tableName, whereClause, embeddingArg, limit)

	rows, err := s.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform semantic search: %w", err)
	}
	defer rows.Close()

	var results []vector.ScoredPoint
	for rows.Next() {
		var (
			id      string
			payload []byte
			score   float64
		)
		if err := rows.Scan(&id, &payload, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}

		var p mem.Payload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode payload for %s: %w", id, err)
		}
		results = append(results, vector.ScoredPoint{
			Point: mem.MemoryPoint{ID: id, Payload: p},
			Score: float32(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rows: %w", err)
	}

	return results, nil
}

// Scroll lists points matching the filter without ranking.
func (s *PgvectorStore) Scroll(ctx context.Context, f vector.Filter, limit int) ([]mem.MemoryPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	whereClause, args := buildWhereClause(f, 1)
	sqlQuery := fmt.Sprintf(`
		SELECT id, payload
		FROM %s
		WHERE %s
		ORDER BY created_at
		LIMIT %d
	`, s.tableName, whereClause, limit)

	rows, err := s.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}
	defer rows.Close()

	var points []mem.MemoryPoint
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan scroll row: %w", err)
		}

		var p mem.Payload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode payload for %s: %w", id, err)
		}
		points = append(points, mem.MemoryPoint{ID: id, Payload: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scroll rows: %w", err)
	}

	return points, nil
}

// SetPayload merges the given fields into an existing point's payload.
func (s *PgvectorStore) SetPayload(ctx context.Context, id string, fields map[string]interface{}) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode payload patch: %w", err)
	}

	tag, err := s.db.Exec(ctx, fmt.Sprintf(
		"UPDATE %s SET payload = payload || $2::jsonb WHERE id = $1", s.tableName),
		id, string(patch))
	if err != nil {
		return fmt.Errorf("failed to update payload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// Delete removes the points by ID. Unknown IDs are ignored.
func (s *PgvectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.db.Exec(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE id = ANY($1)", s.tableName), ids)
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}
