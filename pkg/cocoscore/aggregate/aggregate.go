// Package aggregate turns co-mention evidence into weighted counts.
//
// Evidence for each entity pair is arranged as a document → paragraph →
// sentence tree and max-pooled bottom-up:
//
//	sentence  = SentenceWeight * score            (score = 1 with IgnoreScores)
//	paragraph = ParagraphWeight + max(sentence)
//	document  = DocumentWeight  + max(paragraph)
//	count     = Σ document
//
// A document contributes a single term however often the pair is mentioned
// in it.
package aggregate

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/cocoscore/internal/metrics"
	"github.com/cognicore/cocoscore/pkg/cocoscore/ingest"
	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
)

// PairTypes restricts which match-derived pairs are formed. With First set,
// a pair needs one entity of type First and one of type Second; an empty
// Second accepts any type other than First.
type PairTypes struct {
	First  string `yaml:"first" json:"first,omitempty"`
	Second string `yaml:"second" json:"second,omitempty"`
}

// Enabled reports whether the filter restricts anything
func (t PairTypes) Enabled() bool {
	return t.First != ""
}

// Allows reports whether entities of the two types may form a pair
func (t PairTypes) Allows(typeA, typeB string) bool {
	if !t.Enabled() {
		return true
	}
	return (typeA == t.First && t.second(typeB)) || (typeB == t.First && t.second(typeA))
}

func (t PairTypes) second(typ string) bool {
	if t.Second == "" {
		return typ != t.First
	}
	return typ == t.Second
}

// Config holds granularity weights and aggregation options
type Config struct {
	DocumentWeight  float64 `json:"document_weight"`
	ParagraphWeight float64 `json:"paragraph_weight"`
	SentenceWeight  float64 `json:"sentence_weight"`

	// IgnoreScores counts every sentence co-mention as 1 regardless of score.
	IgnoreScores bool `json:"ignore_scores"`

	// Types filters pairs formed from matches. Score file pairs are untyped
	// and never filtered.
	Types PairTypes `json:"types"`

	// Workers bounds the number of pairs pooled concurrently; <= 1 is serial.
	Workers int `json:"-"`
}

// Validate rejects negative or non-finite weights and an all-zero configuration
func (c Config) Validate() error {
	named := []struct {
		name string
		w    float64
	}{
		{"document", c.DocumentWeight},
		{"paragraph", c.ParagraphWeight},
		{"sentence", c.SentenceWeight},
	}
	for _, n := range named {
		if math.IsNaN(n.w) || math.IsInf(n.w, 0) || n.w < 0 {
			return internalerr.Configf("%s weight %v must be a non-negative number", n.name, n.w)
		}
	}
	if c.DocumentWeight == 0 && c.ParagraphWeight == 0 && c.SentenceWeight == 0 {
		return internalerr.Configf("all granularity weights are zero")
	}
	return nil
}

func (c Config) weights() weights {
	return weights{
		document:     c.DocumentWeight,
		paragraph:    c.ParagraphWeight,
		sentence:     c.SentenceWeight,
		ignoreScores: c.IgnoreScores,
	}
}

// Input is the evidence for one aggregation. Matches is nil when there is no
// match file; Scores and Taxonomy may be empty.
type Input struct {
	Matches  []ingest.Match
	Scores   ingest.SentenceScoreIndex
	Taxonomy *ingest.Taxonomy
}

// Stats describes what an aggregation consumed
type Stats struct {
	Pairs             int
	Documents         int // distinct (pair, document) groups
	Matches           int
	ResolvedTypes     int // matches typed through the taxonomy
	ScoredSentences   int // sentence co-mentions that used a confidence score
	PresenceSentences int // sentence co-mentions counted as bare presence
	Duration          time.Duration
}

// Result is the output of an aggregation with its stats
type Result struct {
	Counts *pmi.WeightedCounts
	Stats  Stats
}

// Aggregator computes weighted counts. It holds no per-call state and is
// safe for concurrent use.
type Aggregator struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithLogger sets the logger used for run summaries
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithMetrics records aggregation metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// New creates an aggregator after validating cfg
func New(cfg Config, opts ...Option) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{cfg: cfg, log: slog.Default().With("component", "aggregate")}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the aggregator's configuration
func (a *Aggregator) Config() Config {
	return a.cfg
}

// Aggregate computes weighted counts for every pair, entity and the global key
func (a *Aggregator) Aggregate(ctx context.Context, in Input) (*pmi.WeightedCounts, error) {
	res, err := a.AggregateWithStats(ctx, in)
	if err != nil {
		return nil, err
	}
	return res.Counts, nil
}

// AggregateWithStats is Aggregate plus a description of the consumed evidence
func (a *Aggregator) AggregateWithStats(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	var stats Stats

	var evidence map[pmi.Pair]*pairEvidence
	if in.Matches != nil {
		matches, resolved := in.Taxonomy.Resolve(in.Matches)
		stats.Matches = len(matches)
		stats.ResolvedTypes = resolved
		evidence = a.matchEvidence(matches, in.Scores, &stats)
	} else {
		evidence = scoreEvidence(in.Scores, &stats)
	}

	pairs := make([]pmi.Pair, 0, len(evidence))
	for p, e := range evidence {
		pairs = append(pairs, p)
		stats.Documents += len(e.documents)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })

	totals, err := a.pool(ctx, pairs, evidence)
	if err != nil {
		return Result{}, err
	}

	counts := pmi.NewWeightedCounts()
	for i, p := range pairs {
		counts.AddPair(p, totals[i])
	}

	stats.Pairs = len(pairs)
	stats.Duration = time.Since(start)
	a.observe(stats)

	return Result{Counts: counts, Stats: stats}, nil
}

// pool max-pools every pair's evidence tree. Each pair writes only its own
// slot, so the result is independent of scheduling.
func (a *Aggregator) pool(ctx context.Context, pairs []pmi.Pair, evidence map[pmi.Pair]*pairEvidence) ([]float64, error) {
	w := a.cfg.weights()
	totals := make([]float64, len(pairs))

	if a.cfg.Workers <= 1 {
		for i, p := range pairs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			totals[i] = w.pool(evidence[p])
		}
		return totals, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, p := range pairs {
		e := evidence[p]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			totals[i] = w.pool(e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return totals, nil
}

// scoreEvidence treats every scored location as sentence-level evidence.
func scoreEvidence(scores ingest.SentenceScoreIndex, stats *Stats) map[pmi.Pair]*pairEvidence {
	evidence := make(map[pmi.Pair]*pairEvidence, len(scores))
	for p, locs := range scores {
		e := newPairEvidence()
		for loc, score := range locs {
			e.add(loc, score)
			if loc.HasSentence() {
				stats.ScoredSentences++
			}
		}
		evidence[p] = e
	}
	return evidence
}

// mention collects where one entity is mentioned within a document.
type mention struct {
	typ        string
	paragraphs map[int]struct{}
	sentences  map[[2]int]struct{}
}

// matchEvidence derives co-mentions by joining matches on location. Within a
// document, two entities sharing a sentence co-occur at sentence level,
// sharing only a paragraph at paragraph level, and otherwise at document
// level. Sentence co-mentions take their score from scores when available.
func (a *Aggregator) matchEvidence(matches []ingest.Match, scores ingest.SentenceScoreIndex, stats *Stats) map[pmi.Pair]*pairEvidence {
	byDoc := make(map[string]map[string]*mention)
	for _, m := range matches {
		ents, ok := byDoc[m.Document]
		if !ok {
			ents = make(map[string]*mention)
			byDoc[m.Document] = ents
		}
		men, ok := ents[m.EntityID]
		if !ok {
			men = &mention{
				typ:        m.EntityType,
				paragraphs: make(map[int]struct{}),
				sentences:  make(map[[2]int]struct{}),
			}
			ents[m.EntityID] = men
		}
		if men.typ == "" {
			men.typ = m.EntityType
		}
		if m.HasParagraph() {
			men.paragraphs[m.Paragraph] = struct{}{}
		}
		if m.HasSentence() {
			men.sentences[[2]int{m.Paragraph, m.Sentence}] = struct{}{}
		}
	}

	evidence := make(map[pmi.Pair]*pairEvidence)
	for doc, ents := range byDoc {
		ids := make([]string, 0, len(ents))
		for id := range ents {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				mi, mj := ents[ids[i]], ents[ids[j]]
				if !a.cfg.Types.Allows(mi.typ, mj.typ) {
					continue
				}
				p := pmi.NewPair(ids[i], ids[j])
				e, ok := evidence[p]
				if !ok {
					e = newPairEvidence()
					evidence[p] = e
				}
				a.joinMentions(e, p, doc, mi, mj, scores, stats)
			}
		}
	}
	return evidence
}

func (a *Aggregator) joinMentions(e *pairEvidence, p pmi.Pair, doc string, mi, mj *mention, scores ingest.SentenceScoreIndex, stats *Stats) {
	e.add(ingest.Location{Document: doc}, 0)

	for para := range mi.paragraphs {
		if _, ok := mj.paragraphs[para]; ok {
			e.add(ingest.Location{Document: doc, Paragraph: para}, 0)
		}
	}

	for ps := range mi.sentences {
		if _, ok := mj.sentences[ps]; !ok {
			continue
		}
		loc := ingest.Location{Document: doc, Paragraph: ps[0], Sentence: ps[1]}
		signal := 1.0
		if score, ok := scores.Lookup(p, loc); ok && !a.cfg.IgnoreScores {
			signal = score
			stats.ScoredSentences++
		} else {
			stats.PresenceSentences++
		}
		e.add(loc, signal)
	}
}

func (a *Aggregator) observe(stats Stats) {
	a.log.Debug("aggregated weighted counts",
		"pairs", stats.Pairs,
		"documents", stats.Documents,
		"matches", stats.Matches,
		"resolved_types", stats.ResolvedTypes,
		"scored_sentences", stats.ScoredSentences,
		"presence_sentences", stats.PresenceSentences,
		"duration", stats.Duration,
	)
	if a.metrics == nil {
		return
	}
	a.metrics.PairsAggregated.Add(float64(stats.Pairs))
	a.metrics.DocumentsPooled.Add(float64(stats.Documents))
	a.metrics.AggregationDuration.Observe(stats.Duration.Seconds())
}
