package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/cocoscore/pkg/cocoscore"
	"github.com/cognicore/cocoscore/pkg/cocoscore/aggregate"
	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
)

func sampleResult(t *testing.T) *cocoscore.Result {
	t.Helper()
	counts := pmi.NewWeightedCounts()
	counts.AddPair(pmi.NewPair("--D", "A"), 15.9+15.44)
	counts.AddPair(pmi.NewPair("--D", "B"), 15)
	counts.AddPair(pmi.NewPair("C", "B"), 15)

	calc, err := pmi.NewCalculator(0.6)
	if err != nil {
		t.Fatal(err)
	}
	return &cocoscore.Result{
		Pipeline: cocoscore.PipelineGeneral,
		Config:   aggregate.Config{DocumentWeight: 15, SentenceWeight: 1},
		Exponent: 0.6,
		Counts:   counts,
		Scores:   calc.ScoreAll(counts),
		Stats:    aggregate.Stats{Pairs: 3, Documents: 4},
	}
}

func TestBuildSummaryAndCards(t *testing.T) {
	res := sampleResult(t)
	rep := New().Build(res, 2)

	if rep.Pipeline != cocoscore.PipelineGeneral {
		t.Errorf("unexpected pipeline %q", rep.Pipeline)
	}
	if rep.Summary.Pairs != 3 || rep.Summary.Scored != 3 || rep.Summary.Unscored != 0 {
		t.Errorf("unexpected summary %+v", rep.Summary)
	}
	if rep.Summary.Entities != 4 {
		t.Errorf("expected 4 entities, got %d", rep.Summary.Entities)
	}
	if rep.Summary.Documents != 4 {
		t.Errorf("expected 4 documents, got %d", rep.Summary.Documents)
	}
	if len(rep.Cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(rep.Cards))
	}

	top := res.Scores.Top(2)
	for i, c := range rep.Cards {
		if c.Rank != i+1 {
			t.Errorf("card %d has rank %d", i, c.Rank)
		}
		if c.A != top[i].Pair.A || c.B != top[i].Pair.B || c.Score != top[i].Score {
			t.Errorf("card %d = %s|%s %v, want %s %v", i, c.A, c.B, c.Score, top[i].Pair, top[i].Score)
		}
		if len(c.Bullets) != 3 {
			t.Errorf("card %d should have 3 bullets, got %v", i, c.Bullets)
		}
	}
	if rep.Cards[0].Score < rep.Cards[1].Score {
		t.Error("cards should be ordered by score")
	}
}

func TestCardExplainsRatio(t *testing.T) {
	res := sampleResult(t)
	rep := New().Build(res, 0)

	for _, c := range rep.Cards {
		want := (c.Count * res.Counts.Total()) / (c.CountA * c.CountB)
		if math.Abs(c.Ratio-want) > 1e-9 {
			t.Errorf("%s|%s ratio %v, want %v", c.A, c.B, c.Ratio, want)
		}
		if c.PMI == nil || math.Abs(*c.PMI-math.Log(want)) > 1e-9 {
			t.Errorf("%s|%s pmi %v, want %v", c.A, c.B, c.PMI, math.Log(want))
		}
		// With w = 0.6 the score interpolates count and ratio geometrically
		score := math.Pow(c.Count, 0.6) * math.Pow(c.Ratio, 0.4)
		if math.Abs(c.Score-score) > 1e-9 {
			t.Errorf("%s|%s score %v, want %v", c.A, c.B, c.Score, score)
		}
	}
}

func TestCardZeroCountHasNoPMI(t *testing.T) {
	counts := pmi.NewWeightedCounts()
	counts.AddPair(pmi.NewPair("a", "b"), 2)
	counts.AddPair(pmi.NewPair("a", "c"), 0)
	counts.AddPair(pmi.NewPair("c", "d"), 1)
	calc, _ := pmi.NewCalculator(0.5)
	res := &cocoscore.Result{Counts: counts, Scores: calc.ScoreAll(counts)}

	rep := New().Build(res, 0)
	var zero *Card
	for i := range rep.Cards {
		if rep.Cards[i].B == "c" {
			zero = &rep.Cards[i]
		}
	}
	if zero == nil {
		t.Fatal("expected a card for a|c")
	}
	if zero.PMI != nil {
		t.Errorf("zero count pair should have no PMI, got %v", *zero.PMI)
	}
	if _, err := json.Marshal(rep); err != nil {
		t.Errorf("report should marshal: %v", err)
	}
}

func TestBuilderULIDUniqueness(t *testing.T) {
	builder := New()

	ids := make(map[string]bool)
	prev := ""
	for i := 0; i < 1000; i++ {
		id := builder.NewID()
		if ids[id] {
			t.Errorf("Duplicate ULID generated: %s", id)
		}
		if _, err := ulid.ParseStrict(id); err != nil {
			t.Errorf("invalid ULID %q: %v", id, err)
		}
		if id <= prev {
			t.Errorf("ULIDs not monotonic: %s after %s", id, prev)
		}
		ids[id] = true
		prev = id
	}
}

func TestBuilderTimestamp(t *testing.T) {
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	builder := New()
	builder.now = func() time.Time { return fixed }

	rep := builder.Build(sampleResult(t), 1)
	if !rep.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", rep.CreatedAt, fixed)
	}
	id, err := ulid.Parse(rep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := ulid.Time(id.Time()); !got.Equal(fixed) {
		t.Errorf("ULID time = %v, want %v", got, fixed)
	}
}

func TestStoreRun(t *testing.T) {
	res := sampleResult(t)
	rep := New().Build(res, 1)
	run := rep.StoreRun(res)

	if run.ID != rep.ID || run.Pipeline != rep.Pipeline || !run.CreatedAt.Equal(rep.CreatedAt) {
		t.Errorf("run metadata mismatch: %+v", run)
	}
	if run.Counts != res.Counts || len(run.Scores) != len(res.Scores) {
		t.Error("run should carry the full counts and scores")
	}
	if err := run.Validate(); err != nil {
		t.Errorf("run should validate: %v", err)
	}
}

func TestWriteTextCanonicalPairs(t *testing.T) {
	rep := New().Build(sampleResult(t), 0)

	var buf bytes.Buffer
	if err := rep.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "C|B") {
		t.Errorf("pairs should print in canonical order:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "B|C") {
		t.Errorf("output missing B|C:\n%s", buf.String())
	}
}

func TestWriteText(t *testing.T) {
	rep := New().Build(sampleResult(t), 0)

	var buf bytes.Buffer
	if err := rep.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{rep.ID, "RANK", "--D|A", pmi.NewPair("C", "B").String(), "pairs=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
