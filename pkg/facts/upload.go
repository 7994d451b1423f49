package facts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/memtier/pkg/embedding"
	"github.com/openclaw/memtier/pkg/errors"
	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/mem/vector"
)

// dedupPrefixLen is how much of a fact's text participates in duplicate
// detection against already-stored points.
const dedupPrefixLen = 100

// existingScrollLimit bounds how many stored points one date is expected
// to hold.
const existingScrollLimit = 1000

// Options configures an upload run.
type Options struct {
	// LogDir holds the YYYY-MM-DD.md daily logs
	LogDir string

	// BatchSize is the number of facts embedded and upserted per batch
	BatchSize int

	// Parallelism bounds concurrent batch uploads
	Parallelism int

	// DryRun reports what would be uploaded without writing
	DryRun bool
}

// Report summarizes one extraction/upload run.
type Report struct {
	// Date is the log date processed
	Date string

	// Extracted counts facts parsed from the log
	Extracted int

	// Skipped counts facts already present in the store
	Skipped int

	// Uploaded counts facts durably written
	Uploaded int

	// Failed counts facts that could not be embedded or stored
	Failed int
}

// Uploader embeds extracted facts and writes them to the vector store.
type Uploader struct {
	store    vector.Store
	embedder embedding.Provider
	opts     Options
}

// NewUploader creates an upload job.
func NewUploader(store vector.Store, embedder embedding.Provider, opts Options) *Uploader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 2
	}
	return &Uploader{store: store, embedder: embedder, opts: opts}
}

// ProcessDate extracts facts from one day's log file and uploads the ones
// not already stored. A missing file is not an error: it reports zero
// extracted facts.
func (u *Uploader) ProcessDate(ctx context.Context, userID, date string) (Report, error) {
	if userID == "" {
		return Report{}, errors.ErrMissingUserID
	}

	report := Report{Date: date}
	path := filepath.Join(u.opts.LogDir, date+".md")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.InfoContext(ctx, "No log file for date", "date", date, "path", path)
		return report, nil
	}
	if err != nil {
		return report, errors.Wrap(err, "failed to read log file")
	}

	all := Extract(string(content), date)
	report.Extracted = len(all)
	if len(all) == 0 {
		return report, nil
	}

	fresh, skipped, err := u.filterExisting(ctx, userID, date, all)
	if err != nil {
		// Dedup is best-effort: an unreadable store surfaces again on
		// upload, so proceed with everything.
		log.WarnContext(ctx, "Could not check existing facts", "date", date, "error", err)
		fresh = all
	}
	report.Skipped = skipped

	if len(fresh) == 0 {
		log.InfoContext(ctx, "All facts already stored", "date", date)
		return report, nil
	}

	if u.opts.DryRun {
		log.InfoContext(ctx, "Dry run, skipping upload", "date", date, "new_facts", len(fresh))
		return report, nil
	}

	uploaded, failed := u.uploadBatches(ctx, userID, date, fresh)
	report.Uploaded = uploaded
	report.Failed = failed

	if failed > 0 {
		return report, fmt.Errorf("%d of %d facts failed to upload", failed, len(fresh))
	}
	return report, nil
}

// Backfill processes every YYYY-MM-DD.md file in the log directory in
// date order, continuing past per-date failures.
func (u *Uploader) Backfill(ctx context.Context, userID string) ([]Report, error) {
	dates, err := LogDates(u.opts.LogDir)
	if err != nil {
		return nil, err
	}

	var reports []Report
	var firstErr error
	for _, date := range dates {
		report, err := u.ProcessDate(ctx, userID, date)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		reports = append(reports, report)
	}
	return reports, firstErr
}

// LogDates lists the dates with a daily log file, sorted ascending.
func LogDates(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "????-??-??.md"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list log files")
	}
	dates := make([]string, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		dates = append(dates, name[:len(name)-len(".md")])
	}
	sort.Strings(dates)
	return dates, nil
}

// filterExisting drops facts whose text prefix already exists in the
// store for this user and date.
func (u *Uploader) filterExisting(ctx context.Context, userID, date string, all []Fact) ([]Fact, int, error) {
	points, err := u.store.Scroll(ctx, vector.Filter{UserID: userID, Tag: date}, existingScrollLimit)
	if err != nil {
		return nil, 0, err
	}

	existing := make(map[string]bool, len(points))
	for _, p := range points {
		existing[mem.Truncate(p.Payload.Text, dedupPrefixLen)] = true
	}

	var fresh []Fact
	skipped := 0
	for _, f := range all {
		if existing[mem.Truncate(f.Text, dedupPrefixLen)] {
			skipped++
			continue
		}
		fresh = append(fresh, f)
	}
	return fresh, skipped, nil
}

// uploadBatches embeds and upserts facts in fixed-size batches, a bounded
// number of batches in flight at once. A failed batch loses nothing: the
// facts stay derivable from the log file and are retried next run.
func (u *Uploader) uploadBatches(ctx context.Context, userID, date string, facts []Fact) (uploaded, failed int) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Parallelism)

	for start := 0; start < len(facts); start += u.opts.BatchSize {
		end := start + u.opts.BatchSize
		if end > len(facts) {
			end = len(facts)
		}
		batch := facts[start:end]

		g.Go(func() error {
			points, err := u.buildPoints(gctx, userID, date, batch)
			if err == nil {
				err = u.store.Upsert(gctx, points)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.WarnContext(gctx, "Fact batch failed", "date", date, "size", len(batch), "error", err)
				failed += len(batch)
			} else {
				uploaded += len(batch)
			}
			return nil
		})
	}
	_ = g.Wait()
	return uploaded, failed
}

func (u *Uploader) buildPoints(ctx context.Context, userID, date string, batch []Fact) ([]mem.MemoryPoint, error) {
	texts := make([]string, len(batch))
	for i, f := range batch {
		texts[i] = f.Text
	}

	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors))
	}

	now := time.Now().UTC()
	points := make([]mem.MemoryPoint, len(batch))
	for i, f := range batch {
		points[i] = mem.MemoryPoint{
			ID:     uuid.New().String(),
			Vector: vectors[i],
			Payload: mem.Payload{
				UserID:       userID,
				Text:         f.Text,
				Date:         date,
				Tags:         f.Tags,
				Importance:   f.Importance,
				Source:       Source,
				SourceType:   f.SourceType,
				Category:     f.Category,
				Confidence:   "high",
				Verified:     true,
				CreatedAt:    now,
				AccessCount:  0,
				LastAccessed: now,
			},
		}
	}
	return points, nil
}
