// Package retention enforces the memory retention policy. Permanent
// retention is the default; age-based pruning only runs when explicitly
// configured.
package retention

import (
	"context"
	"time"

	"github.com/openclaw/memtier/pkg/errors"
	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/mem/vector"
)

// scrollLimit bounds how many points one prune pass examines.
const scrollLimit = 10000

// deleteBatchSize bounds how many IDs go into one delete call.
const deleteBatchSize = 100

// Policy is the retention policy for stored memories.
type Policy struct {
	// Permanent keeps every memory indefinitely
	Permanent bool

	// MaxAgeDays is the cutoff when Permanent is false
	MaxAgeDays int
}

// Report summarizes one prune pass.
type Report struct {
	// Examined counts points considered
	Examined int

	// Pruned counts points deleted
	Pruned int
}

// Pruner deletes memories older than the policy allows.
type Pruner struct {
	store  vector.Store
	policy Policy
}

// NewPruner creates a prune job.
func NewPruner(store vector.Store, policy Policy) *Pruner {
	return &Pruner{store: store, policy: policy}
}

// Run prunes one user's expired memories. Under a permanent policy it is
// a no-op.
func (p *Pruner) Run(ctx context.Context, userID string) (Report, error) {
	if userID == "" {
		return Report{}, errors.ErrMissingUserID
	}
	if p.policy.Permanent || p.policy.MaxAgeDays <= 0 {
		log.DebugContext(ctx, "Retention is permanent, nothing to prune", "user_id", userID)
		return Report{}, nil
	}

	points, err := p.store.Scroll(ctx, vector.Filter{UserID: userID}, scrollLimit)
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to list points")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -p.policy.MaxAgeDays)
	report := Report{Examined: len(points)}

	var expired []string
	for _, point := range points {
		created := point.Payload.CreatedAt
		if !created.IsZero() && created.Before(cutoff) {
			expired = append(expired, point.ID)
		}
	}

	for start := 0; start < len(expired); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(expired) {
			end = len(expired)
		}
		if err := p.store.Delete(ctx, expired[start:end]); err != nil {
			return report, errors.Wrap(err, "failed to delete expired points")
		}
		report.Pruned += end - start
	}

	if report.Pruned > 0 {
		log.InfoContext(ctx, "Pruned expired memories",
			"user_id", userID, "pruned", report.Pruned, "cutoff", cutoff.Format("2006-01-02"))
	}
	return report, nil
}
