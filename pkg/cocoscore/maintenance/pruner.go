package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store"
)

// Pruner removes stored runs that fall outside a retention policy.
type Pruner struct {
	Store store.Store

	// Keep retains the newest Keep runs; 0 disables the count limit.
	Keep int
	// MaxAge removes runs created longer ago; 0 disables the age limit.
	MaxAge time.Duration
	// Pipeline restricts pruning to runs of one pipeline when set.
	Pipeline string

	Now func() time.Time
}

// Result summarizes the pruning run.
type Result struct {
	Examined int
	Deleted  []string
	Errors   int
}

// Prune deletes every run outside the policy. A failed delete is counted and
// the remaining runs are still processed.
func (p *Pruner) Prune(ctx context.Context) (Result, error) {
	var res Result
	if p.Store == nil {
		return res, internalerr.Configf("pruner: no store")
	}
	if p.Keep < 0 || p.MaxAge < 0 {
		return res, internalerr.Configf("pruner: negative retention (keep %d, max age %s)", p.Keep, p.MaxAge)
	}
	if p.Keep == 0 && p.MaxAge == 0 {
		return res, internalerr.Configf("pruner: set keep or max age")
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff := now().Add(-p.MaxAge)

	runs, err := p.Store.ListRuns(ctx, 0)
	if err != nil {
		return res, fmt.Errorf("list runs: %w", err)
	}

	kept := 0
	for _, r := range runs {
		if p.Pipeline != "" && r.Pipeline != p.Pipeline {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Examined++

		expired := p.MaxAge > 0 && r.CreatedAt.Before(cutoff)
		if !expired && (p.Keep == 0 || kept < p.Keep) {
			kept++
			continue
		}
		if err := p.Store.DeleteRun(ctx, r.ID); err != nil {
			slog.Warn("prune run failed", "id", r.ID, "error", err)
			res.Errors++
			continue
		}
		res.Deleted = append(res.Deleted, r.ID)
	}
	return res, nil
}
