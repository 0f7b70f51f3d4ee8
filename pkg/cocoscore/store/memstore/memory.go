package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]*store.Run)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun stores a copy of the run, replacing any run with the same ID.
func (s *Store) SaveRun(ctx context.Context, r store.Run) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = copyRun(&r)
	return nil
}

// GetRun returns the metadata of a run.
func (s *Store) GetRun(ctx context.Context, id string) (store.RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return store.RunInfo{}, store.NotFound(id)
	}
	return r.Info(), nil
}

// ListRuns returns runs newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.RunInfo, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LoadRun returns a copy of a full run.
func (s *Store) LoadRun(ctx context.Context, id string) (*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, store.NotFound(id)
	}
	return copyRun(r), nil
}

// DeleteRun removes a run.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return store.NotFound(id)
	}
	delete(s.runs, id)
	return nil
}

// PairScore explains the score of one pair in a run.
func (s *Store) PairScore(ctx context.Context, id, a, b string) (store.PairResult, error) {
	p, err := store.CheckPair(a, b)
	if err != nil {
		return store.PairResult{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return store.PairResult{}, store.NotFound(id)
	}
	if !r.Counts.Has(pmi.PairKey(p)) {
		return store.PairResult{}, store.MissingPair(id, p)
	}

	res := store.PairResult{
		A:      p.A,
		B:      p.B,
		Count:  r.Counts.PairCount(p.A, p.B),
		CountA: r.Counts.EntityCount(p.A),
		CountB: r.Counts.EntityCount(p.B),
		Total:  r.Counts.Total(),
	}
	res.Score, res.Scored = r.Scores[p]
	return res, nil
}

// TopPartners returns the k best scoring partners of an entity.
func (s *Store) TopPartners(ctx context.Context, id, entity string, k int) ([]store.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, store.NotFound(id)
	}

	var partners []store.Partner
	for _, p := range r.Counts.Pairs() {
		if !p.Contains(entity) {
			continue
		}
		partner := store.Partner{
			Entity: p.Other(entity),
			Count:  r.Counts.PairCount(p.A, p.B),
		}
		partner.Score, partner.Scored = r.Scores[p]
		partners = append(partners, partner)
	}
	return store.SortPartners(partners, k), nil
}

func copyRun(r *store.Run) *store.Run {
	out := *r
	out.Counts = r.Counts.Clone()
	out.Scores = make(pmi.Scores, len(r.Scores))
	for p, v := range r.Scores {
		out.Scores[p] = v
	}
	return &out
}
