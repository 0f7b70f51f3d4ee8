// Package storetest holds behaviour tests shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/cocoscore/pkg/cocoscore/aggregate"
	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store"
)

const delta = 1e-9

// SampleRun builds a small scored run. Pair x|y has zero weight and so is
// left unscored.
func SampleRun(id string, createdAt time.Time) store.Run {
	counts := pmi.NewWeightedCounts()
	counts.AddPair(pmi.NewPair("--D", "A"), 15.9+15.44)
	counts.AddPair(pmi.NewPair("--D", "B"), 15)
	counts.AddPair(pmi.NewPair("C", "B"), 15)
	counts.AddPair(pmi.NewPair("x", "y"), 0)

	calc, err := pmi.NewCalculator(0.6)
	if err != nil {
		panic(err)
	}
	return store.Run{
		ID:        id,
		Pipeline:  "general",
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
		Config: aggregate.Config{
			DocumentWeight: 15,
			SentenceWeight: 1,
			Types:          aggregate.PairTypes{First: "-26"},
		},
		Exponent: 0.6,
		Counts:   counts,
		Scores:   calc.ScoreAll(counts),
	}
}

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("SaveAndLoad", func(t *testing.T) { testSaveAndLoad(t, open(t)) })
	t.Run("GetRunNotFound", func(t *testing.T) { testNotFound(t, open(t)) })
	t.Run("ListRuns", func(t *testing.T) { testListRuns(t, open(t)) })
	t.Run("PairScore", func(t *testing.T) { testPairScore(t, open(t)) })
	t.Run("TopPartners", func(t *testing.T) { testTopPartners(t, open(t)) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, open(t)) })
	t.Run("DeleteRun", func(t *testing.T) { testDeleteRun(t, open(t)) })
	t.Run("InvalidRun", func(t *testing.T) { testInvalidRun(t, open(t)) })
	t.Run("ConcurrentReads", func(t *testing.T) { testConcurrentReads(t, open(t)) })
}

func testSaveAndLoad(t *testing.T, st store.Store) {
	ctx := context.Background()
	run := SampleRun("01HZZZRUN0000000000000000A", time.Now())
	require.NoError(t, st.SaveRun(ctx, run))

	info, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, info.ID)
	assert.Equal(t, "general", info.Pipeline)
	assert.True(t, run.CreatedAt.Equal(info.CreatedAt), "created %v, got %v", run.CreatedAt, info.CreatedAt)
	assert.Equal(t, run.Config, info.Config)
	assert.Equal(t, 0.6, info.Exponent)
	assert.Equal(t, 4, info.Pairs)
	assert.Equal(t, 6, info.Entities)
	assert.InDelta(t, run.Counts.Total(), info.Total, delta)

	loaded, err := st.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Counts.Entries(), loaded.Counts.Entries())
	require.Len(t, loaded.Scores, len(run.Scores))
	for p, want := range run.Scores {
		assert.InDelta(t, want, loaded.Scores[p], delta, "pair %s", p)
	}
}

func testNotFound(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound), "got %v", err)

	_, err = st.LoadRun(ctx, "missing")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound), "got %v", err)

	_, err = st.PairScore(ctx, "missing", "A", "B")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound), "got %v", err)

	_, err = st.TopPartners(ctx, "missing", "A", 5)
	assert.True(t, errors.Is(err, internalerr.ErrNotFound), "got %v", err)
}

func testListRuns(t *testing.T, st store.Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveRun(ctx, SampleRun("run-old", base)))
	require.NoError(t, st.SaveRun(ctx, SampleRun("run-new", base.Add(time.Hour))))
	require.NoError(t, st.SaveRun(ctx, SampleRun("run-mid", base.Add(time.Minute))))

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-mid", runs[1].ID)
	assert.Equal(t, "run-old", runs[2].ID)

	runs, err = st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-new", runs[0].ID)
}

func testPairScore(t *testing.T, st store.Store) {
	ctx := context.Background()
	run := SampleRun("run", time.Now())
	require.NoError(t, st.SaveRun(ctx, run))

	// Either order resolves to the canonical pair
	res, err := st.PairScore(ctx, "run", "A", "--D")
	require.NoError(t, err)
	assert.Equal(t, "--D", res.A)
	assert.Equal(t, "A", res.B)
	assert.InDelta(t, 15.9+15.44, res.Count, delta)
	assert.InDelta(t, run.Counts.EntityCount("--D"), res.CountA, delta)
	assert.InDelta(t, run.Counts.EntityCount("A"), res.CountB, delta)
	assert.InDelta(t, run.Counts.Total(), res.Total, delta)
	assert.True(t, res.Scored)
	want, _ := run.Scores.Get("--D", "A")
	assert.InDelta(t, want, res.Score, delta)

	unscored, err := st.PairScore(ctx, "run", "x", "y")
	require.NoError(t, err)
	assert.False(t, unscored.Scored)
	assert.Zero(t, unscored.Count)

	_, err = st.PairScore(ctx, "run", "A", "C")
	assert.True(t, errors.Is(err, internalerr.ErrMissingEvidence), "got %v", err)

	_, err = st.PairScore(ctx, "run", "A", "A")
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput), "got %v", err)
}

func testTopPartners(t *testing.T, st store.Store) {
	ctx := context.Background()
	run := SampleRun("run", time.Now())
	require.NoError(t, st.SaveRun(ctx, run))

	partners, err := st.TopPartners(ctx, "run", "--D", 0)
	require.NoError(t, err)
	require.Len(t, partners, 2)

	sA, _ := run.Scores.Get("--D", "A")
	sB, _ := run.Scores.Get("--D", "B")
	first, second := "A", "B"
	if sB > sA {
		first, second = "B", "A"
	}
	assert.Equal(t, first, partners[0].Entity)
	assert.Equal(t, second, partners[1].Entity)
	assert.GreaterOrEqual(t, partners[0].Score, partners[1].Score)

	limited, err := st.TopPartners(ctx, "run", "B", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := st.TopPartners(ctx, "run", "unknown", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	unscored, err := st.TopPartners(ctx, "run", "x", 5)
	require.NoError(t, err)
	require.Len(t, unscored, 1)
	assert.Equal(t, "y", unscored[0].Entity)
	assert.False(t, unscored[0].Scored)
}

func testReplace(t *testing.T, st store.Store) {
	ctx := context.Background()
	require.NoError(t, st.SaveRun(ctx, SampleRun("run", time.Now())))

	counts := pmi.NewWeightedCounts()
	counts.AddPair(pmi.NewPair("P", "Q"), 3)
	replacement := store.Run{
		ID:        "run",
		Pipeline:  "disease",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Config:    aggregate.Config{DocumentWeight: 1, IgnoreScores: true},
		Exponent:  0.6,
		Counts:    counts,
		Scores:    pmi.Scores{pmi.NewPair("P", "Q"): 3},
	}
	require.NoError(t, st.SaveRun(ctx, replacement))

	info, err := st.GetRun(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, "disease", info.Pipeline)
	assert.Equal(t, 1, info.Pairs)

	_, err = st.PairScore(ctx, "run", "--D", "A")
	assert.True(t, errors.Is(err, internalerr.ErrMissingEvidence), "got %v", err)
}

func testDeleteRun(t *testing.T, st store.Store) {
	ctx := context.Background()
	require.NoError(t, st.SaveRun(ctx, SampleRun("keep", time.Now())))
	require.NoError(t, st.SaveRun(ctx, SampleRun("drop", time.Now())))

	require.NoError(t, st.DeleteRun(ctx, "drop"))

	_, err := st.GetRun(ctx, "drop")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound), "got %v", err)
	_, err = st.PairScore(ctx, "drop", "--D", "A")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound), "got %v", err)

	err = st.DeleteRun(ctx, "drop")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound), "got %v", err)

	_, err = st.PairScore(ctx, "keep", "--D", "A")
	assert.NoError(t, err)
	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "keep", runs[0].ID)
}

func testInvalidRun(t *testing.T, st store.Store) {
	ctx := context.Background()

	err := st.SaveRun(ctx, store.Run{Counts: pmi.NewWeightedCounts()})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput), "got %v", err)

	err = st.SaveRun(ctx, store.Run{ID: "no-counts"})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput), "got %v", err)
}

func testConcurrentReads(t *testing.T, st store.Store) {
	ctx := context.Background()
	require.NoError(t, st.SaveRun(ctx, SampleRun("run", time.Now())))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.PairScore(ctx, "run", "A", "--D"); err != nil {
				errs <- err
			}
			if _, err := st.TopPartners(ctx, "run", "B", 3); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent read: %v", err)
	}
}
