package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/mem/vector"
)

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(Config{Collection: "memories"})
	require.NoError(t, err)
	return store
}

func point(id, userID, text string, vec []float32, tags ...string) mem.MemoryPoint {
	return mem.MemoryPoint{
		ID:     id,
		Vector: vec,
		Payload: mem.Payload{
			UserID:      userID,
			Text:        text,
			Tags:        tags,
			SourceType:  mem.SourceTypeUser,
			ContentHash: "hash-" + id,
		},
	}
}

func TestUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, []mem.MemoryPoint{
		point("p1", "vansh", "about cats", []float32{1, 0, 0}),
		point("p2", "vansh", "about dogs", []float32{0, 1, 0}),
	}))

	results, err := store.Search(ctx, []float32{1, 0, 0}, vector.Query{
		Limit:  2,
		Filter: vector.Filter{UserID: "vansh"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].Point.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchEmptyCollection(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), []float32{1, 0, 0}, vector.Query{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScrollByContentHash(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, []mem.MemoryPoint{
		point("p1", "vansh", "one", []float32{1, 0, 0}),
		point("p2", "vansh", "two", []float32{0, 1, 0}),
	}))

	points, err := store.Scroll(ctx, vector.Filter{UserID: "vansh", ContentHash: "hash-p2"}, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "p2", points[0].ID)
}

func TestScrollByTag(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, []mem.MemoryPoint{
		point("p1", "vansh", "tagged", []float32{1, 0, 0}, "2026-03-14"),
		point("p2", "vansh", "untagged", []float32{0, 1, 0}),
	}))

	points, err := store.Scroll(ctx, vector.Filter{Tag: "2026-03-14"}, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "p1", points[0].ID)
}

func TestSetPayloadMergesFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, []mem.MemoryPoint{
		point("p1", "vansh", "tracked", []float32{1, 0, 0}),
	}))

	require.NoError(t, store.SetPayload(ctx, "p1", map[string]interface{}{"access_count": 7}))

	points, err := store.Scroll(ctx, vector.Filter{UserID: "vansh"}, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 7, points[0].Payload.AccessCount)
	assert.Equal(t, "tracked", points[0].Payload.Text)

	assert.Error(t, store.SetPayload(ctx, "missing", map[string]interface{}{"access_count": 1}))
}

func TestPersistentStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewChromemStore(Config{Collection: "memories", StoragePath: dir})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, []mem.MemoryPoint{
		point("p1", "vansh", "about cats", []float32{1, 0, 0}),
		point("p2", "vansh", "about dogs", []float32{0, 1, 0}),
	}))

	reopened, err := NewChromemStore(Config{Collection: "memories", StoragePath: dir})
	require.NoError(t, err)

	// Dedup relies on the content-hash scroll working across restarts.
	points, err := reopened.Scroll(ctx, vector.Filter{UserID: "vansh", ContentHash: "hash-p1"}, 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "p1", points[0].ID)
	assert.Equal(t, "about cats", points[0].Payload.Text)

	require.NoError(t, reopened.SetPayload(ctx, "p2", map[string]interface{}{"access_count": 3}))
	points, err = reopened.Scroll(ctx, vector.Filter{UserID: "vansh", ContentHash: "hash-p2"}, 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 3, points[0].Payload.AccessCount)
}

func TestPersistentStoreReopenAfterDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewChromemStore(Config{Collection: "memories", StoragePath: dir})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, []mem.MemoryPoint{
		point("p1", "vansh", "keep", []float32{1, 0, 0}),
		point("p2", "vansh", "drop", []float32{0, 1, 0}),
	}))
	require.NoError(t, store.Delete(ctx, []string{"p2"}))

	reopened, err := NewChromemStore(Config{Collection: "memories", StoragePath: dir})
	require.NoError(t, err)

	points, err := reopened.Scroll(ctx, vector.Filter{UserID: "vansh"}, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "p1", points[0].ID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, []mem.MemoryPoint{
		point("p1", "vansh", "keep", []float32{1, 0, 0}),
		point("p2", "vansh", "drop", []float32{0, 1, 0}),
	}))

	require.NoError(t, store.Delete(ctx, []string{"p2"}))

	points, err := store.Scroll(ctx, vector.Filter{UserID: "vansh"}, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "p1", points[0].ID)

	results, err := store.Search(ctx, []float32{0, 1, 0}, vector.Query{Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].Point.ID)
}
