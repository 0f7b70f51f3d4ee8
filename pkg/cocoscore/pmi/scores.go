package pmi

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Scores maps each pair to its co-occurrence score
type Scores map[Pair]float64

// PairScore is one scored pair
type PairScore struct {
	Pair  Pair
	Score float64
}

// Get returns the score of a pair in either order
func (s Scores) Get(a, b string) (float64, bool) {
	v, ok := s[NewPair(a, b)]
	return v, ok
}

// Sorted returns all scores in canonical pair order
func (s Scores) Sorted() []PairScore {
	out := make([]PairScore, 0, len(s))
	for p, v := range s {
		out = append(out, PairScore{Pair: p, Score: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair.Less(out[j].Pair) })
	return out
}

// Top returns the k highest scores; ties are broken by pair order.
// k <= 0 returns every score.
func (s Scores) Top(k int) []PairScore {
	out := s.Sorted()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// WriteTSV writes entity1, entity2, score rows in canonical pair order
func (s Scores) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, ps := range s.Sorted() {
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", ps.Pair.A, ps.Pair.B, strconv.FormatFloat(ps.Score, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
