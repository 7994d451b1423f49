package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/memtier/pkg/capture"
	embedmock "github.com/openclaw/memtier/pkg/embedding/adapters/mock"
	buffermock "github.com/openclaw/memtier/pkg/mem/buffer/adapters/mock"
	"github.com/openclaw/memtier/pkg/mem/vector/adapters/chromem"
	"github.com/openclaw/memtier/pkg/promotion"
)

// TestCapturePromoteSearchRoundTrip drives an exchange through the whole
// pipeline: transcript file -> buffer -> vector store -> search. Querying
// with the exact stored text must return its point at rank one.
func TestCapturePromoteSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	userID := "vansh"

	userText := "how do I rotate the wireguard keys safely"
	assistantText := "generate new keys, update both peers, then restart the interface"

	dir := t.TempDir()
	lines := []string{
		fmt.Sprintf(`{"type":"message","timestamp":"2026-03-14T09:00:00Z","message":{"role":"user","content":%q}}`, userText),
		fmt.Sprintf(`{"type":"message","timestamp":"2026-03-14T09:00:10Z","message":{"role":"assistant","content":%q}}`, assistantText),
	}
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "session.jsonl"),
		[]byte(strings.Join(lines, "\n")+"\n"), 0o644))

	buf := buffermock.NewMockBuffer()
	embedder := embedmock.NewMockProvider()
	store, err := chromem.NewChromemStore(chromem.Config{Collection: "memories"})
	require.NoError(t, err)

	capturer := capture.NewCapturer(buf, capture.Options{
		SessionsDir: dir,
		StatePath:   filepath.Join(t.TempDir(), "state.json"),
	})
	captureReport, err := capturer.Run(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 2, captureReport.Appended)

	seen, err := promotion.NewSeenCache(10)
	require.NoError(t, err)
	promoter := promotion.NewPromoter(buf, store, embedder, seen, promotion.Options{
		FallbackDir: t.TempDir(),
	})
	promoteReport, err := promoter.Run(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 1, promoteReport.Stored)
	require.True(t, promoteReport.Cleared)

	// The stored user point's text carries a speaker prefix; query with
	// the exact stored form so self-similarity puts it at rank one.
	searcher := NewSearcher(store, embedder, buf)
	query := fmt.Sprintf("[%s]: %s", userID, userText)
	results, err := searcher.Search(ctx, userID, query, Options{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, query, results[0].Point.Payload.Text)
	assert.Greater(t, results[0].Score, float32(0.9))

	// The buffer was cleared, so only the vector tier answers now.
	hybrid, err := searcher.HybridSearch(ctx, userID, "wireguard", Options{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, hybrid.BufferMatches)
	assert.NotEmpty(t, hybrid.VectorMatches)
}
