// Package retrieval answers queries against both memory tiers: semantic
// search over the vector store and exact substring search over the
// short-term buffer, which must not depend on embedding freshness.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openclaw/memtier/pkg/embedding"
	"github.com/openclaw/memtier/pkg/errors"
	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/mem/buffer"
	"github.com/openclaw/memtier/pkg/mem/vector"
)

// DefaultLimit caps result counts when the caller does not set one.
const DefaultLimit = 5

// Options narrows a semantic search.
type Options struct {
	// Limit caps the number of results
	Limit int

	// Tag restricts results to points carrying the tag
	Tag string

	// SummariesOnly restricts results to system summary points
	SummariesOnly bool

	// TrackAccess updates access stats on returned points
	TrackAccess bool
}

// HybridResult combines exact buffer matches with semantic vector matches.
// Buffer matches always precede vector matches in presentation order.
type HybridResult struct {
	BufferMatches []mem.Turn
	VectorMatches []vector.ScoredPoint
}

// Searcher queries the vector store and the short-term buffer.
type Searcher struct {
	store    vector.Store
	embedder embedding.Provider
	buffer   buffer.Store
}

// NewSearcher creates a searcher. The buffer may be nil when only
// semantic search is needed.
func NewSearcher(store vector.Store, embedder embedding.Provider, buf buffer.Store) *Searcher {
	return &Searcher{store: store, embedder: embedder, buffer: buf}
}

// Search embeds the query and returns ranked matches for the user. When
// opts.TrackAccess is set, access stats on returned points are updated in
// the background; a failed update never fails the search.
func (s *Searcher) Search(ctx context.Context, userID, query string, opts Options) ([]vector.ScoredPoint, error) {
	if userID == "" {
		return nil, errors.ErrMissingUserID
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "query cannot be empty")
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}

	filter := vector.Filter{UserID: userID, Tag: opts.Tag}
	if opts.SummariesOnly {
		filter.SourceType = mem.SourceTypeSystem
	}

	results, err := s.store.Search(ctx, vectors[0], vector.Query{Limit: opts.Limit, Filter: filter})
	if err != nil {
		return nil, errors.Wrap(err, "search failed")
	}

	if opts.TrackAccess {
		go s.trackAccess(results)
	}
	return results, nil
}

// trackAccess bumps access_count and last_accessed on each point. Runs
// detached from the originating request, bounded by its own timeout.
func (s *Searcher) trackAccess(results []vector.ScoredPoint) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range results {
		fields := map[string]interface{}{
			"access_count":  r.Point.Payload.AccessCount + 1,
			"last_accessed": now,
		}
		if err := s.store.SetPayload(ctx, r.Point.ID, fields); err != nil {
			log.Debug("Access tracking failed", "point_id", r.Point.ID, "error", err)
		}
	}
}

// SearchBuffer scans the short-term buffer for case-insensitive substring
// matches, newest first. A limit of zero or less returns all matches.
// Exact-recency lookups must not depend on embedding freshness.
func (s *Searcher) SearchBuffer(ctx context.Context, userID, query string, limit int) ([]mem.Turn, error) {
	if userID == "" {
		return nil, errors.ErrMissingUserID
	}
	if s.buffer == nil {
		return nil, errors.Wrap(errors.ErrBufferUnavailable, "no buffer configured")
	}

	turns, err := s.buffer.ReadAll(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read buffer")
	}

	needle := strings.ToLower(query)
	var matches []mem.Turn
	for _, turn := range turns {
		if strings.Contains(strings.ToLower(turn.Content), needle) {
			matches = append(matches, turn)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].Timestamp.Equal(matches[j].Timestamp) {
			return matches[i].Timestamp.After(matches[j].Timestamp)
		}
		return matches[i].TurnNumber > matches[j].TurnNumber
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// HybridSearch combines both tiers. Buffer failures degrade to
// vector-only results; vector failures degrade to buffer-only results;
// both failing is an error.
func (s *Searcher) HybridSearch(ctx context.Context, userID, query string, opts Options) (HybridResult, error) {
	var result HybridResult
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	bufferMatches, bufferErr := s.SearchBuffer(ctx, userID, query, opts.Limit)
	if bufferErr != nil {
		log.WarnContext(ctx, "Buffer search unavailable", "user_id", userID, "error", bufferErr)
	} else {
		result.BufferMatches = bufferMatches
	}

	vectorMatches, vectorErr := s.Search(ctx, userID, query, opts)
	if vectorErr != nil {
		log.WarnContext(ctx, "Vector search unavailable", "user_id", userID, "error", vectorErr)
	} else {
		result.VectorMatches = vectorMatches
	}

	if bufferErr != nil && vectorErr != nil {
		return result, errors.Wrap(vectorErr, "both memory tiers unavailable")
	}
	return result, nil
}

// SessionContext is a snapshot for priming a new session: the tail of the
// short-term buffer plus stored exchange summaries for the user.
type SessionContext struct {
	RecentTurns []mem.Turn
	Summaries   []mem.MemoryPoint
}

// Context assembles a session-priming snapshot without a query: the most
// recent buffer turns and up to limit stored exchange summaries. Tier
// failures degrade the same way HybridSearch does; both failing is an
// error.
func (s *Searcher) Context(ctx context.Context, userID string, limit int) (SessionContext, error) {
	var sc SessionContext
	if userID == "" {
		return sc, errors.ErrMissingUserID
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var bufferErr error
	if s.buffer == nil {
		bufferErr = errors.Wrap(errors.ErrBufferUnavailable, "no buffer configured")
	} else if turns, err := s.buffer.ReadAll(ctx, userID); err != nil {
		bufferErr = errors.Wrap(err, "failed to read buffer")
	} else {
		if len(turns) > limit {
			turns = turns[len(turns)-limit:]
		}
		sc.RecentTurns = turns
	}
	if bufferErr != nil {
		log.WarnContext(ctx, "Buffer unavailable for session context", "user_id", userID, "error", bufferErr)
	}

	summaries, vectorErr := s.store.Scroll(ctx, vector.Filter{
		UserID:     userID,
		SourceType: mem.SourceTypeSystem,
	}, limit)
	if vectorErr != nil {
		log.WarnContext(ctx, "Summaries unavailable for session context", "user_id", userID, "error", vectorErr)
	} else {
		sc.Summaries = summaries
	}

	if bufferErr != nil && vectorErr != nil {
		return sc, errors.Wrap(vectorErr, "both memory tiers unavailable")
	}
	return sc, nil
}

// FormatSessionContext renders a session-priming snapshot as a markdown
// block suitable for injecting into a prompt.
func FormatSessionContext(sc SessionContext) string {
	if len(sc.RecentTurns) == 0 && len(sc.Summaries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Session context\n")
	for _, turn := range sc.RecentTurns {
		fmt.Fprintf(&b, "- [recent/%s] %s\n", turn.Role, mem.Truncate(turn.Content, 200))
	}
	for _, p := range sc.Summaries {
		fmt.Fprintf(&b, "- [summary] %s\n", mem.Truncate(p.Payload.Text, 200))
	}
	return b.String()
}

// FormatContext renders results as a markdown block suitable for
// injecting into a prompt.
func FormatContext(result HybridResult) string {
	if len(result.BufferMatches) == 0 && len(result.VectorMatches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Relevant memories\n")
	for _, turn := range result.BufferMatches {
		fmt.Fprintf(&b, "- [recent/%s] %s\n", turn.Role, mem.Truncate(turn.Content, 200))
	}
	for _, match := range result.VectorMatches {
		fmt.Fprintf(&b, "- [%.2f] %s\n", match.Score, mem.Truncate(match.Point.Payload.Text, 200))
	}
	return b.String()
}
