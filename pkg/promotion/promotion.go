// Package promotion moves buffered conversation turns into the durable
// vector store. The buffer is cleared only after every exchange read from
// it was either durably stored or recognized as a duplicate; any failure
// preserves the buffer in full so the next run retries.
package promotion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/memtier/pkg/embedding"
	"github.com/openclaw/memtier/pkg/errors"
	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/mem/buffer"
	"github.com/openclaw/memtier/pkg/mem/vector"
)

// Source names this producer in stored payloads.
const Source = "conversation_auto"

// summarySource names the denormalized summary points.
const summarySource = "conversation_summary"

// importanceKeywords promote an exchange to high importance when present.
var importanceKeywords = []string{"remember", "important", "always", "never", "rule"}

// Options configures a promotion run.
type Options struct {
	// FallbackDir receives JSONL backups when storage fails
	FallbackDir string

	// Parallelism bounds concurrent embed/upsert calls
	Parallelism int

	// DryRun reports what would be stored without writing or clearing
	DryRun bool
}

// Report summarizes one promotion run.
type Report struct {
	// Read counts buffered entries read
	Read int

	// Exchanges counts paired (user, assistant) exchanges attempted
	Exchanges int

	// Stored counts exchanges durably written (three points each)
	Stored int

	// Skipped counts exchanges recognized as duplicates
	Skipped int

	// Failed counts exchanges that could not be stored
	Failed int

	// Cleared is true when the buffer was deleted after the run
	Cleared bool

	// FallbackPath is the JSONL backup written on failure, if any
	FallbackPath string
}

// SeenCache is the bounded in-process dedup fast path. It is a latency
// optimization only; the vector store remains the source of truth and
// hashes are added only after a confirmed write.
type SeenCache = lru.Cache[string, time.Time]

// NewSeenCache creates a bounded seen-hash cache.
func NewSeenCache(size int) (*SeenCache, error) {
	if size <= 0 {
		size = 1000
	}
	return lru.New[string, time.Time](size)
}

// Promoter moves one user's buffered turns into the vector store.
type Promoter struct {
	buffer   buffer.Store
	store    vector.Store
	embedder embedding.Provider
	seen     *SeenCache
	opts     Options
}

// NewPromoter creates a promotion job. The seen cache is supplied by the
// caller so its lifetime can span runs.
func NewPromoter(buf buffer.Store, store vector.Store, embedder embedding.Provider, seen *SeenCache, opts Options) *Promoter {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 2
	}
	return &Promoter{
		buffer:   buf,
		store:    store,
		embedder: embedder,
		seen:     seen,
		opts:     opts,
	}
}

// PairExchanges pairs each user turn with the nearest following assistant
// turn, stopping the search at the next user turn. User turns with no
// answering assistant turn are dropped: partial exchanges are not
// durable-worthy.
func PairExchanges(turns []mem.Turn) []mem.Exchange {
	var exchanges []mem.Exchange
	for i, t := range turns {
		if t.Role != mem.RoleUser {
			continue
		}
		for j := i + 1; j < len(turns); j++ {
			if turns[j].Role == mem.RoleAssistant {
				exchanges = append(exchanges, mem.Exchange{User: t, Assistant: turns[j]})
				break
			}
			if turns[j].Role == mem.RoleUser {
				break
			}
		}
	}
	return exchanges
}

// SortChronological orders turns by (timestamp, turn number) ascending,
// absorbing any physical insertion-order quirks in the buffer.
func SortChronological(turns []mem.Turn) {
	sort.SliceStable(turns, func(i, j int) bool {
		if !turns[i].Timestamp.Equal(turns[j].Timestamp) {
			return turns[i].Timestamp.Before(turns[j].Timestamp)
		}
		return turns[i].TurnNumber < turns[j].TurnNumber
	})
}

// Run performs one promotion pass for the user. It returns
// errors.ErrPromotionIncomplete when any exchange failed; the buffer is
// preserved in that case.
func (p *Promoter) Run(ctx context.Context, userID string) (Report, error) {
	if userID == "" {
		return Report{}, errors.ErrMissingUserID
	}

	turns, err := p.buffer.ReadAll(ctx, userID)
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to read buffer")
	}

	report := Report{Read: len(turns)}
	if len(turns) == 0 {
		log.InfoContext(ctx, "Buffer empty, nothing to promote", "user_id", userID)
		return report, nil
	}

	SortChronological(turns)
	exchanges := PairExchanges(turns)
	report.Exchanges = len(exchanges)

	if p.opts.DryRun {
		log.InfoContext(ctx, "Dry run, skipping storage",
			"user_id", userID, "exchanges", len(exchanges))
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Parallelism)

	for _, exchange := range exchanges {
		exchange := exchange
		g.Go(func() error {
			outcome := p.promoteExchange(gctx, userID, exchange)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeStored:
				report.Stored++
			case outcomeSkipped:
				report.Skipped++
			default:
				report.Failed++
			}
			// Failures never abort the group: the remaining exchanges
			// still get their attempt.
			return nil
		})
	}
	_ = g.Wait()

	if report.Failed > 0 || report.Stored+report.Skipped != report.Exchanges {
		// Preserve the buffer in full; write a local backup so the data
		// exists somewhere durable even if the store stays down.
		if path, ferr := p.writeFallback(userID, turns); ferr != nil {
			log.ErrorContext(ctx, "Fallback backup failed", "user_id", userID, "error", ferr)
		} else {
			report.FallbackPath = path
		}
		log.WarnContext(ctx, "Promotion incomplete, buffer preserved",
			"user_id", userID,
			"stored", report.Stored,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
		return report, errors.ErrPromotionIncomplete
	}

	if err := p.buffer.Clear(ctx, userID); err != nil {
		// Storage succeeded but clearing failed; the next run will
		// re-read and dedup everything, so this is safe but noisy.
		return report, errors.Wrap(err, "stored but failed to clear buffer")
	}
	report.Cleared = true

	log.InfoContext(ctx, "Promotion complete",
		"user_id", userID,
		"stored", report.Stored,
		"skipped", report.Skipped,
	)
	return report, nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeStored
	outcomeSkipped
)

// promoteExchange deduplicates, embeds and stores one exchange.
func (p *Promoter) promoteExchange(ctx context.Context, userID string, exchange mem.Exchange) outcome {
	hash := exchange.Hash()

	dup, err := p.isDuplicate(ctx, userID, hash)
	if err != nil {
		log.WarnContext(ctx, "Dedup check failed", "user_id", userID, "error", err)
		return outcomeFailed
	}
	if dup {
		return outcomeSkipped
	}

	points, err := p.buildPoints(ctx, userID, exchange, hash)
	if err != nil {
		log.WarnContext(ctx, "Failed to embed exchange", "user_id", userID, "error", err)
		return outcomeFailed
	}

	if err := p.store.Upsert(ctx, points); err != nil {
		// Not stored and not remembered: the next run must retry it.
		log.WarnContext(ctx, "Failed to upsert exchange", "user_id", userID, "error", err)
		return outcomeFailed
	}

	p.seen.Add(hash, time.Now().UTC())
	return outcomeStored
}

// isDuplicate checks the seen cache, then the vector store, for an
// existing point with this user and content hash.
func (p *Promoter) isDuplicate(ctx context.Context, userID, hash string) (bool, error) {
	if p.seen.Contains(hash) {
		return true, nil
	}

	points, err := p.store.Scroll(ctx, vector.Filter{UserID: userID, ContentHash: hash}, 1)
	if err != nil {
		return false, err
	}
	if len(points) > 0 {
		p.seen.Add(hash, time.Now().UTC())
		return true, nil
	}
	return false, nil
}

// buildPoints embeds the exchange and constructs its three memory points:
// user turn, assistant turn, and a system summary combining both.
func (p *Promoter) buildPoints(ctx context.Context, userID string, exchange mem.Exchange, hash string) ([]mem.MemoryPoint, error) {
	user := exchange.User
	assistant := exchange.Assistant

	date := user.Timestamp.UTC().Format("2006-01-02")
	conversationID := "mem-buffer-" + date
	turnNumber := user.TurnNumber
	if turnNumber <= 0 {
		turnNumber = 1
	}

	userText := fmt.Sprintf("[%s]: %s", userID, user.Content)
	assistantText := fmt.Sprintf("[assistant]: %s", assistant.Content)
	summaryText := fmt.Sprintf("[Turn %d] Q: %s A: %s",
		turnNumber, mem.Truncate(user.Content, 200), mem.Truncate(assistant.Content, 300))

	vectors, err := p.embedder.Embed(ctx, []string{userText, assistantText, summaryText})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 3 {
		return nil, fmt.Errorf("expected 3 embeddings, got %d", len(vectors))
	}

	importance := mem.ImportanceMedium
	combined := strings.ToLower(user.Content + " " + assistant.Content)
	for _, kw := range importanceKeywords {
		if strings.Contains(combined, kw) {
			importance = mem.ImportanceHigh
			break
		}
	}

	tags := []string{"conversation", "user:" + userID, date}
	if user.SessionID != "" {
		tags = append(tags, "session:"+mem.Truncate(user.SessionID, 8))
	}

	now := time.Now().UTC()
	base := mem.Payload{
		UserID:         userID,
		Date:           date,
		Importance:     importance,
		Source:         Source,
		Category:       "Full Conversation",
		Confidence:     "high",
		Verified:       true,
		CreatedAt:      now,
		AccessCount:    0,
		LastAccessed:   now,
		ConversationID: conversationID,
		TurnNumber:     turnNumber,
		SessionID:      user.SessionID,
		ContentHash:    hash,
	}

	userPayload := base
	userPayload.Text = userText
	userPayload.SourceType = mem.SourceTypeUser
	userPayload.Tags = append(append([]string{}, tags...), "user-message")

	assistantPayload := base
	assistantPayload.Text = assistantText
	assistantPayload.SourceType = mem.SourceTypeAssistant
	assistantPayload.Tags = append(append([]string{}, tags...), "ai-response")

	summaryPayload := base
	summaryPayload.Text = summaryText
	summaryPayload.Source = summarySource
	summaryPayload.SourceType = mem.SourceTypeSystem
	summaryPayload.Category = "Conversation Summary"
	summaryPayload.Tags = append(append([]string{}, tags...), "summary", "combined")
	summaryPayload.UserMessage = mem.Truncate(user.Content, 500)
	summaryPayload.AIResponse = mem.Truncate(assistant.Content, 800)

	return []mem.MemoryPoint{
		{ID: uuid.New().String(), Vector: vectors[0], Payload: userPayload},
		{ID: uuid.New().String(), Vector: vectors[1], Payload: assistantPayload},
		{ID: uuid.New().String(), Vector: vectors[2], Payload: summaryPayload},
	}, nil
}
