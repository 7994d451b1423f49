package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/memtier/pkg/mem"
	vectormock "github.com/openclaw/memtier/pkg/mem/vector/adapters/mock"
)

func seed(t *testing.T, store *vectormock.MockStore, userID string, ageDays int, n int) {
	t.Helper()
	created := time.Now().UTC().AddDate(0, 0, -ageDays)
	points := make([]mem.MemoryPoint, n)
	for i := range points {
		points[i] = mem.MemoryPoint{
			ID:     fmt.Sprintf("%s-%d-%d", userID, ageDays, i),
			Vector: []float32{1},
			Payload: mem.Payload{
				UserID:    userID,
				Text:      "memory",
				CreatedAt: created,
			},
		}
	}
	require.NoError(t, store.Upsert(context.Background(), points))
}

func TestRunPermanentPolicyIsNoop(t *testing.T) {
	store := vectormock.NewMockStore()
	seed(t, store, "vansh", 400, 3)

	report, err := NewPruner(store, Policy{Permanent: true, MaxAgeDays: 30}).Run(context.Background(), "vansh")
	require.NoError(t, err)
	assert.Zero(t, report.Pruned)
	assert.Len(t, store.Points(), 3)
}

func TestRunPrunesOnlyExpired(t *testing.T) {
	store := vectormock.NewMockStore()
	seed(t, store, "vansh", 90, 2) // expired
	seed(t, store, "vansh", 5, 3)  // fresh
	seed(t, store, "other", 90, 1) // different user

	report, err := NewPruner(store, Policy{MaxAgeDays: 30}).Run(context.Background(), "vansh")
	require.NoError(t, err)
	assert.Equal(t, 5, report.Examined)
	assert.Equal(t, 2, report.Pruned)
	assert.Len(t, store.Points(), 4)
}

func TestRunKeepsPointsWithoutCreatedAt(t *testing.T) {
	store := vectormock.NewMockStore()
	require.NoError(t, store.Upsert(context.Background(), []mem.MemoryPoint{
		{ID: "undated", Vector: []float32{1}, Payload: mem.Payload{UserID: "vansh", Text: "keep"}},
	}))

	report, err := NewPruner(store, Policy{MaxAgeDays: 30}).Run(context.Background(), "vansh")
	require.NoError(t, err)
	assert.Zero(t, report.Pruned)
	assert.Len(t, store.Points(), 1)
}

func TestRunMissingUserID(t *testing.T) {
	_, err := NewPruner(vectormock.NewMockStore(), Policy{MaxAgeDays: 30}).Run(context.Background(), "")
	assert.Error(t, err)
}
