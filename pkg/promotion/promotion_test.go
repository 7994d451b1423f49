package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/memtier/pkg/errors"
	"github.com/openclaw/memtier/pkg/mem"
	buffermock "github.com/openclaw/memtier/pkg/mem/buffer/adapters/mock"
	embedmock "github.com/openclaw/memtier/pkg/embedding/adapters/mock"
	vectormock "github.com/openclaw/memtier/pkg/mem/vector/adapters/mock"
)

func turnAt(role mem.Role, content string, offset int) mem.Turn {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return mem.Turn{
		Role:       role,
		Content:    content,
		Timestamp:  base.Add(time.Duration(offset) * time.Second),
		UserID:     "vansh",
		TurnNumber: offset,
	}
}

func newTestPromoter(t *testing.T, buf *buffermock.MockBuffer, store *vectormock.MockStore) *Promoter {
	t.Helper()
	seen, err := NewSeenCache(100)
	require.NoError(t, err)
	return NewPromoter(buf, store, embedmock.NewMockProvider(), seen, Options{
		FallbackDir: t.TempDir(),
		Parallelism: 2,
	})
}

func TestPairExchanges(t *testing.T) {
	t.Run("pairs user with nearest following assistant", func(t *testing.T) {
		turns := []mem.Turn{
			turnAt(mem.RoleUser, "q1", 1),
			turnAt(mem.RoleAssistant, "a1", 2),
			turnAt(mem.RoleUser, "q2", 3),
			turnAt(mem.RoleAssistant, "a2", 4),
		}
		exchanges := PairExchanges(turns)
		require.Len(t, exchanges, 2)
		assert.Equal(t, "q1", exchanges[0].User.Content)
		assert.Equal(t, "a1", exchanges[0].Assistant.Content)
		assert.Equal(t, "q2", exchanges[1].User.Content)
		assert.Equal(t, "a2", exchanges[1].Assistant.Content)
	})

	t.Run("stops pairing at next user turn", func(t *testing.T) {
		turns := []mem.Turn{
			turnAt(mem.RoleUser, "unanswered", 1),
			turnAt(mem.RoleUser, "q2", 2),
			turnAt(mem.RoleAssistant, "a2", 3),
		}
		exchanges := PairExchanges(turns)
		require.Len(t, exchanges, 1)
		assert.Equal(t, "q2", exchanges[0].User.Content)
	})

	t.Run("drops trailing unanswered user turn", func(t *testing.T) {
		turns := []mem.Turn{
			turnAt(mem.RoleUser, "q1", 1),
			turnAt(mem.RoleAssistant, "a1", 2),
			turnAt(mem.RoleUser, "pending", 3),
		}
		assert.Len(t, PairExchanges(turns), 1)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, PairExchanges(nil))
	})
}

func TestSortChronological(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	turns := []mem.Turn{
		{Role: mem.RoleAssistant, Content: "a1", Timestamp: base.Add(time.Second), TurnNumber: 2},
		{Role: mem.RoleUser, Content: "q2", Timestamp: base.Add(2 * time.Second), TurnNumber: 3},
		{Role: mem.RoleUser, Content: "q1", Timestamp: base, TurnNumber: 1},
	}
	SortChronological(turns)
	assert.Equal(t, "q1", turns[0].Content)
	assert.Equal(t, "a1", turns[1].Content)
	assert.Equal(t, "q2", turns[2].Content)

	// Equal timestamps fall back to turn number.
	ties := []mem.Turn{
		{Content: "second", Timestamp: base, TurnNumber: 2},
		{Content: "first", Timestamp: base, TurnNumber: 1},
	}
	SortChronological(ties)
	assert.Equal(t, "first", ties[0].Content)
}

func TestRunStoresThreePointsPerExchange(t *testing.T) {
	ctx := context.Background()
	buf := buffermock.NewMockBuffer()
	store := vectormock.NewMockStore()
	p := newTestPromoter(t, buf, store)

	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleUser, "what is raft", 1)))
	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleAssistant, "a consensus algorithm", 2)))

	report, err := p.Run(ctx, "vansh")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Read)
	assert.Equal(t, 1, report.Exchanges)
	assert.Equal(t, 1, report.Stored)
	assert.True(t, report.Cleared)

	points := store.Points()
	require.Len(t, points, 3)

	sourceTypes := map[mem.SourceType]int{}
	for _, point := range points {
		sourceTypes[point.Payload.SourceType]++
		assert.Equal(t, "vansh", point.Payload.UserID)
		assert.NotEmpty(t, point.Payload.ContentHash)
		assert.NotEmpty(t, point.Vector)
	}
	assert.Equal(t, 1, sourceTypes[mem.SourceTypeUser])
	assert.Equal(t, 1, sourceTypes[mem.SourceTypeAssistant])
	assert.Equal(t, 1, sourceTypes[mem.SourceTypeSystem])

	n, err := buf.Len(ctx, "vansh")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunDeduplicatesAcrossRuns(t *testing.T) {
	ctx := context.Background()
	buf := buffermock.NewMockBuffer()
	store := vectormock.NewMockStore()
	p := newTestPromoter(t, buf, store)

	appendExchange := func() {
		require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleUser, "same question", 1)))
		require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleAssistant, "same answer", 2)))
	}

	appendExchange()
	report, err := p.Run(ctx, "vansh")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stored)

	// The identical exchange re-enters the buffer; the second run must
	// skip it without writing anything new.
	appendExchange()
	report, err = p.Run(ctx, "vansh")
	require.NoError(t, err)
	assert.Zero(t, report.Stored)
	assert.Equal(t, 1, report.Skipped)
	assert.True(t, report.Cleared)
	assert.Len(t, store.Points(), 3)
}

func TestRunDeduplicatesViaStoreWhenCacheCold(t *testing.T) {
	ctx := context.Background()
	buf := buffermock.NewMockBuffer()
	store := vectormock.NewMockStore()
	p := newTestPromoter(t, buf, store)

	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleUser, "cold cache", 1)))
	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleAssistant, "still found", 2)))
	_, err := p.Run(ctx, "vansh")
	require.NoError(t, err)

	// A fresh promoter has an empty seen cache, so dedup must fall
	// through to the store scroll.
	fresh := newTestPromoter(t, buf, store)
	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleUser, "cold cache", 1)))
	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleAssistant, "still found", 2)))

	report, err := fresh.Run(ctx, "vansh")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, store.Points(), 3)
}

func TestRunPreservesBufferOnFailure(t *testing.T) {
	ctx := context.Background()
	buf := buffermock.NewMockBuffer()
	store := vectormock.NewMockStore()
	p := newTestPromoter(t, buf, store)

	failing := mem.Exchange{
		User:      turnAt(mem.RoleUser, "will fail", 3),
		Assistant: turnAt(mem.RoleAssistant, "oh no", 4),
	}
	store.FailUpsertFor(failing.Hash())

	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleUser, "fine", 1)))
	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleAssistant, "ok", 2)))
	require.NoError(t, buf.Append(ctx, "vansh", failing.User))
	require.NoError(t, buf.Append(ctx, "vansh", failing.Assistant))

	report, err := p.Run(ctx, "vansh")
	require.ErrorIs(t, err, errors.ErrPromotionIncomplete)
	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Cleared)
	assert.NotEmpty(t, report.FallbackPath)
	assert.FileExists(t, report.FallbackPath)

	// Every turn survives for the next run.
	n, err := buf.Len(ctx, "vansh")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Failed exchanges must not poison the seen cache.
	assert.False(t, p.seen.Contains(failing.Hash()))
}

func TestRunTotalStoreOutage(t *testing.T) {
	ctx := context.Background()
	buf := buffermock.NewMockBuffer()
	store := vectormock.NewMockStore()
	store.UpsertErr = assert.AnError
	p := newTestPromoter(t, buf, store)

	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleUser, "q", 1)))
	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleAssistant, "a", 2)))

	report, err := p.Run(ctx, "vansh")
	require.ErrorIs(t, err, errors.ErrPromotionIncomplete)
	assert.Zero(t, report.Stored)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Cleared)

	n, err := buf.Len(ctx, "vansh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunEmptyBuffer(t *testing.T) {
	buf := buffermock.NewMockBuffer()
	p := newTestPromoter(t, buf, vectormock.NewMockStore())

	report, err := p.Run(context.Background(), "vansh")
	require.NoError(t, err)
	assert.Zero(t, report.Read)
	assert.Zero(t, report.Exchanges)
}

func TestRunMissingUserID(t *testing.T) {
	p := newTestPromoter(t, buffermock.NewMockBuffer(), vectormock.NewMockStore())
	_, err := p.Run(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrMissingUserID)
}

func TestRunDryRun(t *testing.T) {
	ctx := context.Background()
	buf := buffermock.NewMockBuffer()
	store := vectormock.NewMockStore()
	seen, err := NewSeenCache(10)
	require.NoError(t, err)
	p := NewPromoter(buf, store, embedmock.NewMockProvider(), seen, Options{DryRun: true})

	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleUser, "q", 1)))
	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleAssistant, "a", 2)))

	report, err := p.Run(ctx, "vansh")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Exchanges)
	assert.Zero(t, report.Stored)
	assert.False(t, report.Cleared)
	assert.Empty(t, store.Points())

	n, err := buf.Len(ctx, "vansh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunImportanceKeywords(t *testing.T) {
	ctx := context.Background()
	buf := buffermock.NewMockBuffer()
	store := vectormock.NewMockStore()
	p := newTestPromoter(t, buf, store)

	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleUser, "please remember my birthday", 1)))
	require.NoError(t, buf.Append(ctx, "vansh", turnAt(mem.RoleAssistant, "noted", 2)))

	_, err := p.Run(ctx, "vansh")
	require.NoError(t, err)
	for _, point := range store.Points() {
		assert.Equal(t, mem.ImportanceHigh, point.Payload.Importance)
	}
}
