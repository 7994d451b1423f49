package boltdb

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/memtier/pkg/mem"
)

func openTestBuffer(t *testing.T) *BoltBuffer {
	t.Helper()
	buf, err := Open(filepath.Join(t.TempDir(), "buffer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })
	return buf
}

func turn(content string, n int) mem.Turn {
	return mem.Turn{
		Role:       mem.RoleUser,
		Content:    content,
		Timestamp:  time.Date(2026, 3, 14, 9, 0, n, 0, time.UTC),
		UserID:     "vansh",
		TurnNumber: n,
	}
}

func TestAppendReadAllPreservesOrder(t *testing.T) {
	ctx := context.Background()
	buf := openTestBuffer(t)

	for i := 1; i <= 5; i++ {
		require.NoError(t, buf.Append(ctx, "vansh", turn(fmt.Sprintf("turn %d", i), i)))
	}

	turns, err := buf.ReadAll(ctx, "vansh")
	require.NoError(t, err)
	require.Len(t, turns, 5)
	for i, got := range turns {
		assert.Equal(t, fmt.Sprintf("turn %d", i+1), got.Content)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	buf := openTestBuffer(t)

	require.NoError(t, buf.Append(ctx, "vansh", turn("mine", 1)))
	require.NoError(t, buf.Append(ctx, "other", turn("theirs", 1)))

	turns, err := buf.ReadAll(ctx, "vansh")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "mine", turns[0].Content)
}

func TestClearRemovesOnlyOneUser(t *testing.T) {
	ctx := context.Background()
	buf := openTestBuffer(t)

	require.NoError(t, buf.Append(ctx, "vansh", turn("mine", 1)))
	require.NoError(t, buf.Append(ctx, "other", turn("theirs", 1)))

	require.NoError(t, buf.Clear(ctx, "vansh"))

	n, err := buf.Len(ctx, "vansh")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = buf.Len(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClearUnknownUserIsNoop(t *testing.T) {
	buf := openTestBuffer(t)
	assert.NoError(t, buf.Clear(context.Background(), "nobody"))
}

func TestReadAllEmptyUser(t *testing.T) {
	buf := openTestBuffer(t)
	turns, err := buf.ReadAll(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestLen(t *testing.T) {
	ctx := context.Background()
	buf := openTestBuffer(t)

	n, err := buf.Len(ctx, "vansh")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, buf.Append(ctx, "vansh", turn("one", 1)))
	require.NoError(t, buf.Append(ctx, "vansh", turn("two", 2)))

	n, err = buf.Len(ctx, "vansh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "buffer.db")

	buf, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, buf.Append(ctx, "vansh", turn("durable", 1)))
	require.NoError(t, buf.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	turns, err := reopened.ReadAll(ctx, "vansh")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "durable", turns[0].Content)
}
