package pmi

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
)

func sampleCounts() *WeightedCounts {
	counts := NewWeightedCounts()
	counts.AddPair(NewPair("--D", "A"), 15.9+15.44)
	counts.AddPair(NewPair("C", "B"), 15)
	return counts
}

func TestScoreFormula(t *testing.T) {
	calc, err := NewCalculator(0.6)
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	counts := sampleCounts()
	scores := calc.ScoreAll(counts)

	cAD := counts.PairCount("--D", "A")
	cAll := counts.Total()
	expected := math.Pow(cAD, 0.6) * math.Pow((cAD*cAll)/(counts.EntityCount("A")*counts.EntityCount("--D")), 0.4)

	got, ok := scores.Get("A", "--D")
	if !ok {
		t.Fatal("Pair (--D, A) should be scored")
	}
	if math.Abs(got-expected) > 1e-9 {
		t.Errorf("Expected %f, got %f", expected, got)
	}
}

func TestScoreExponentOneIsRawCount(t *testing.T) {
	calc, _ := NewCalculator(1)
	counts := sampleCounts()

	scores := calc.ScoreAll(counts)

	for _, p := range counts.Pairs() {
		if scores[p] != counts.Get(PairKey(p)) {
			t.Errorf("w=1 should return raw count for %s: got %f, want %f", p, scores[p], counts.Get(PairKey(p)))
		}
	}
}

func TestScoreExponentZeroIsRatio(t *testing.T) {
	calc, _ := NewCalculator(0)
	counts := sampleCounts()

	scores := calc.ScoreAll(counts)

	for _, p := range counts.Pairs() {
		cAB := counts.Get(PairKey(p))
		expected := (cAB * counts.Total()) / (counts.EntityCount(p.A) * counts.EntityCount(p.B))
		if scores[p] != expected {
			t.Errorf("w=0 should return ratio for %s: got %f, want %f", p, scores[p], expected)
		}
	}
}

func TestScoreRatioDiscountsFrequentEntities(t *testing.T) {
	calc, _ := NewCalculator(0)

	counts := NewWeightedCounts()
	counts.AddPair(NewPair("hub", "x"), 10)
	counts.AddPair(NewPair("hub", "y"), 10)
	counts.AddPair(NewPair("hub", "z"), 10)
	counts.AddPair(NewPair("p", "q"), 10)

	scores := calc.ScoreAll(counts)

	if scores[NewPair("p", "q")] <= scores[NewPair("hub", "x")] {
		t.Errorf("Exclusive pair should outscore hub pair: %f vs %f", scores[NewPair("p", "q")], scores[NewPair("hub", "x")])
	}
}

func TestNewCalculatorRejectsExponent(t *testing.T) {
	for _, w := range []float64{-0.1, 1.01, math.NaN()} {
		if _, err := NewCalculator(w); !errors.Is(err, internalerr.ErrConfiguration) {
			t.Errorf("Exponent %v should be rejected with ErrConfiguration, got %v", w, err)
		}
	}
}

func TestScoreZeroMarginalExcluded(t *testing.T) {
	calc, _ := NewCalculator(0.6)

	counts := NewWeightedCounts()
	counts.AddPair(NewPair("a", "b"), 0)
	counts.AddPair(NewPair("c", "d"), 2)

	scores := calc.ScoreAll(counts)

	if _, ok := scores.Get("a", "b"); ok {
		t.Error("Pair with zero marginals should be excluded")
	}
	if len(scores) != 1 {
		t.Errorf("Expected 1 score, got %d", len(scores))
	}
}

func TestPairScoreMissingEvidence(t *testing.T) {
	calc, _ := NewCalculator(0.6)
	counts := sampleCounts()

	if _, err := calc.PairScore(counts, "A", "B"); !errors.Is(err, internalerr.ErrMissingEvidence) {
		t.Errorf("Unknown pair should report ErrMissingEvidence, got %v", err)
	}

	s, err := calc.PairScore(counts, "B", "C")
	if err != nil {
		t.Fatalf("PairScore: %v", err)
	}
	if s <= 0 {
		t.Errorf("Expected positive score, got %f", s)
	}
}

func TestRatioZeroDenominator(t *testing.T) {
	if Ratio(1, 0, 1, 10) != 0 {
		t.Error("Zero marginal should yield ratio 0")
	}
}

func TestScoresTopAndTSV(t *testing.T) {
	scores := Scores{
		NewPair("a", "b"): 0.5,
		NewPair("c", "d"): 2,
		NewPair("a", "c"): 2,
	}

	top := scores.Top(2)
	if len(top) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(top))
	}
	if top[0].Pair != NewPair("a", "c") || top[1].Pair != NewPair("c", "d") {
		t.Errorf("Ties should break by pair order, got %v", top)
	}

	var buf bytes.Buffer
	if err := scores.WriteTSV(&buf); err != nil {
		t.Fatalf("WriteTSV: %v", err)
	}
	expected := "a\tb\t0.5\na\tc\t2\nc\td\t2\n"
	if buf.String() != expected {
		t.Errorf("Unexpected TSV:\n%s", buf.String())
	}
}
