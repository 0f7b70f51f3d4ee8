package report

import (
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/cocoscore/pkg/cocoscore"
	"github.com/cognicore/cocoscore/pkg/cocoscore/aggregate"
	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store"
)

// Builder constructs explainable run reports
type Builder struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a new report builder
func New() *Builder {
	return &Builder{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewID returns a fresh, monotonically increasing run ID
func (b *Builder) NewID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(b.now()), b.entropy).String()
}

// Report describes one scoring run and its best pairs
type Report struct {
	ID        string           `json:"id"`
	Pipeline  string           `json:"pipeline"`
	CreatedAt time.Time        `json:"created_at"`
	Config    aggregate.Config `json:"config"`
	Exponent  float64          `json:"weighting_exponent"`
	Summary   Summary          `json:"summary"`
	Cards     []Card           `json:"cards"`
}

// Summary holds run-wide totals
type Summary struct {
	Pairs             int           `json:"pairs"`
	Entities          int           `json:"entities"`
	Scored            int           `json:"scored"`
	Unscored          int           `json:"unscored"`
	Total             float64       `json:"total"`
	Documents         int           `json:"documents"`
	ScoredSentences   int           `json:"scored_sentences"`
	PresenceSentences int           `json:"presence_sentences"`
	Duration          time.Duration `json:"duration_ns"`
}

// Card explains the score of one pair
type Card struct {
	Rank   int      `json:"rank"`
	A      string   `json:"a"`
	B      string   `json:"b"`
	Score  float64  `json:"score"`
	Count  float64  `json:"count"`
	CountA float64  `json:"count_a"`
	CountB float64  `json:"count_b"`
	Ratio  float64  `json:"ratio"`
	PMI    *float64 `json:"pmi,omitempty"` // nil when the pair count is zero

	Bullets []string `json:"bullets"`
}

// Build creates a report with cards for the topK highest scoring pairs.
// topK <= 0 includes every scored pair.
func (b *Builder) Build(res *cocoscore.Result, topK int) *Report {
	rep := &Report{
		ID:        b.NewID(),
		Pipeline:  res.Pipeline,
		CreatedAt: b.now().UTC(),
		Config:    res.Config,
		Exponent:  res.Exponent,
		Summary: Summary{
			Pairs:             res.Counts.UniquePairs(),
			Entities:          res.Counts.UniqueEntities(),
			Scored:            len(res.Scores),
			Unscored:          res.Counts.UniquePairs() - len(res.Scores),
			Total:             res.Counts.Total(),
			Documents:         res.Stats.Documents,
			ScoredSentences:   res.Stats.ScoredSentences,
			PresenceSentences: res.Stats.PresenceSentences,
			Duration:          res.Stats.Duration,
		},
	}

	top := res.Scores.Top(topK)
	rep.Cards = make([]Card, 0, len(top))
	for i, ps := range top {
		rep.Cards = append(rep.Cards, buildCard(i+1, ps, res.Counts))
	}
	return rep
}

func buildCard(rank int, ps pmi.PairScore, counts *pmi.WeightedCounts) Card {
	p := ps.Pair
	card := Card{
		Rank:   rank,
		A:      p.A,
		B:      p.B,
		Score:  ps.Score,
		Count:  counts.PairCount(p.A, p.B),
		CountA: counts.EntityCount(p.A),
		CountB: counts.EntityCount(p.B),
	}
	card.Ratio = pmi.Ratio(card.Count, card.CountA, card.CountB, counts.Total())
	if card.Ratio > 0 {
		v := math.Log(card.Ratio)
		card.PMI = &v
	}

	card.Bullets = []string{
		fmt.Sprintf("weighted co-occurrence %.4g of %.4g total", card.Count, counts.Total()),
		fmt.Sprintf("%s occurs with weight %.4g, %s with weight %.4g", p.A, card.CountA, p.B, card.CountB),
	}
	switch {
	case card.Ratio > 1:
		card.Bullets = append(card.Bullets, fmt.Sprintf("observed %.3gx more often than expected by chance", card.Ratio))
	case card.Ratio < 1:
		card.Bullets = append(card.Bullets, fmt.Sprintf("observed less often than expected by chance (ratio %.3g)", card.Ratio))
	default:
		card.Bullets = append(card.Bullets, "observed exactly as often as expected by chance")
	}
	return card
}

// StoreRun packages the report metadata with the run's counts and scores
func (r *Report) StoreRun(res *cocoscore.Result) store.Run {
	return store.Run{
		ID:        r.ID,
		Pipeline:  r.Pipeline,
		CreatedAt: r.CreatedAt,
		Config:    r.Config,
		Exponent:  r.Exponent,
		Counts:    res.Counts,
		Scores:    res.Scores,
	}
}

// WriteText renders the report as an aligned table
func (r *Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "run %s (%s) exponent=%g\n", r.ID, r.Pipeline, r.Exponent); err != nil {
		return err
	}
	s := r.Summary
	if _, err := fmt.Fprintf(w, "pairs=%d scored=%d entities=%d total=%.4g documents=%d\n\n",
		s.Pairs, s.Scored, s.Entities, s.Total, s.Documents); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPAIR\tSCORE\tCOUNT\tRATIO")
	for _, c := range r.Cards {
		fmt.Fprintf(tw, "%d\t%s|%s\t%.4f\t%.4g\t%.3g\n", c.Rank, c.A, c.B, c.Score, c.Count, c.Ratio)
	}
	return tw.Flush()
}
