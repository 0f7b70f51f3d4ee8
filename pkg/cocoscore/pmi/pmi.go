package pmi

import (
	"fmt"
	"math"

	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
)

// Calculator combines weighted counts into co-occurrence scores
type Calculator struct {
	exponent float64 // weighting exponent w in [0,1]
}

// NewCalculator creates a calculator with the given weighting exponent
func NewCalculator(exponent float64) (*Calculator, error) {
	if math.IsNaN(exponent) || exponent < 0 || exponent > 1 {
		return nil, internalerr.Configf("weighting exponent %v outside [0,1]", exponent)
	}
	return &Calculator{exponent: exponent}, nil
}

// Exponent returns the weighting exponent
func (c *Calculator) Exponent() float64 {
	return c.exponent
}

// Score calculates the co-occurrence score of a pair
//
// S(a,b) = C_ab^w * (C_ab * C / (C_a * C_b))^(1-w)
//
// Where:
//   - C_ab = weighted count of the pair
//   - C_a, C_b = marginal weighted counts of each entity
//   - C = global weighted count
//   - w = weighting exponent; 1 gives the raw count, 0 the normalized ratio
//
// ok is false when either marginal is zero.
func (c *Calculator) Score(cAB, cA, cB, cAll float64) (score float64, ok bool) {
	if cA == 0 || cB == 0 {
		return 0, false
	}
	ratio := Ratio(cAB, cA, cB, cAll)
	return math.Pow(cAB, c.exponent) * math.Pow(ratio, 1-c.exponent), true
}

// Ratio is the marginal-normalized part of the score, C_ab * C / (C_a * C_b).
// Its logarithm is the pointwise mutual information of the weighted counts.
func Ratio(cAB, cA, cB, cAll float64) float64 {
	denominator := cA * cB
	if denominator == 0 {
		return 0
	}
	return (cAB * cAll) / denominator
}

// ScoreAll scores every pair in counts. Pairs with a zero marginal are left out.
func (c *Calculator) ScoreAll(counts *WeightedCounts) Scores {
	scores := make(Scores, counts.UniquePairs())
	total := counts.Total()
	for _, p := range counts.Pairs() {
		s, ok := c.Score(counts.Get(PairKey(p)), counts.EntityCount(p.A), counts.EntityCount(p.B), total)
		if !ok {
			continue
		}
		scores[p] = s
	}
	return scores
}

// PairScore scores a single pair, failing with ErrMissingEvidence when the
// pair cannot be scored from counts.
func (c *Calculator) PairScore(counts *WeightedCounts, a, b string) (float64, error) {
	p := NewPair(a, b)
	if !counts.Has(PairKey(p)) {
		return 0, fmt.Errorf("pair %s: %w", p, internalerr.ErrMissingEvidence)
	}
	s, ok := c.Score(counts.Get(PairKey(p)), counts.EntityCount(p.A), counts.EntityCount(p.B), counts.Total())
	if !ok {
		return 0, fmt.Errorf("pair %s has zero marginal: %w", p, internalerr.ErrMissingEvidence)
	}
	return s, nil
}
