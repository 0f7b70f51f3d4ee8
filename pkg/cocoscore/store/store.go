package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cognicore/cocoscore/pkg/cocoscore/aggregate"
	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
)

// DefaultTopK is used when a partner query asks for k <= 0
const DefaultTopK = 10

// Store persists scoring runs and answers queries over them
type Store interface {
	Close() error

	// Runs
	SaveRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (RunInfo, error)
	ListRuns(ctx context.Context, limit int) ([]RunInfo, error)
	LoadRun(ctx context.Context, id string) (*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Queries
	PairScore(ctx context.Context, id, a, b string) (PairResult, error)
	TopPartners(ctx context.Context, id, entity string, k int) ([]Partner, error)
}

// Run is a complete scoring run: its configuration, counts and scores
type Run struct {
	ID        string // ULID
	Pipeline  string
	CreatedAt time.Time
	Config    aggregate.Config
	Exponent  float64
	Counts    *pmi.WeightedCounts
	Scores    pmi.Scores
}

// Info summarizes the run
func (r *Run) Info() RunInfo {
	return RunInfo{
		ID:        r.ID,
		Pipeline:  r.Pipeline,
		CreatedAt: r.CreatedAt,
		Config:    r.Config,
		Exponent:  r.Exponent,
		Pairs:     r.Counts.UniquePairs(),
		Entities:  r.Counts.UniqueEntities(),
		Total:     r.Counts.Total(),
	}
}

// Validate rejects runs that cannot be stored
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run without id: %w", internalerr.ErrInvalidInput)
	}
	if r.Counts == nil {
		return fmt.Errorf("run %s without counts: %w", r.ID, internalerr.ErrInvalidInput)
	}
	return nil
}

// RunInfo is the metadata of a stored run
type RunInfo struct {
	ID        string           `json:"id"`
	Pipeline  string           `json:"pipeline"`
	CreatedAt time.Time        `json:"created_at"`
	Config    aggregate.Config `json:"config"`
	Exponent  float64          `json:"weighting_exponent"`
	Pairs     int              `json:"pairs"`
	Entities  int              `json:"entities"`
	Total     float64          `json:"total"`
}

// PairResult explains one pair's score
type PairResult struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Count  float64 `json:"count"`
	CountA float64 `json:"count_a"`
	CountB float64 `json:"count_b"`
	Total  float64 `json:"total"`
	Score  float64 `json:"score"`
	Scored bool    `json:"scored"` // false when a marginal is zero
}

// Partner is an entity co-occurring with the queried one
type Partner struct {
	Entity string  `json:"entity"`
	Count  float64 `json:"count"`
	Score  float64 `json:"score"`
	Scored bool    `json:"scored"`
}

// CheckPair canonicalizes a queried pair, rejecting self pairs
func CheckPair(a, b string) (pmi.Pair, error) {
	if a == "" || b == "" {
		return pmi.Pair{}, fmt.Errorf("empty entity in pair query: %w", internalerr.ErrInvalidInput)
	}
	if a == b {
		return pmi.Pair{}, fmt.Errorf("self pair %q: %w", a, internalerr.ErrInvalidInput)
	}
	return pmi.NewPair(a, b), nil
}

// SortPartners orders partners by score (unscored last), then by count,
// then by entity, and truncates to k.
func SortPartners(partners []Partner, k int) []Partner {
	if k <= 0 {
		k = DefaultTopK
	}
	sort.Slice(partners, func(i, j int) bool {
		pi, pj := partners[i], partners[j]
		if pi.Scored != pj.Scored {
			return pi.Scored
		}
		if pi.Score != pj.Score {
			return pi.Score > pj.Score
		}
		if pi.Count != pj.Count {
			return pi.Count > pj.Count
		}
		return pi.Entity < pj.Entity
	})
	if len(partners) > k {
		partners = partners[:k]
	}
	return partners
}

// NotFound wraps ErrNotFound for a missing run
func NotFound(id string) error {
	return fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
}

// MissingPair wraps ErrMissingEvidence for a pair absent from a run
func MissingPair(id string, p pmi.Pair) error {
	return fmt.Errorf("run %s pair %s: %w", id, p, internalerr.ErrMissingEvidence)
}
