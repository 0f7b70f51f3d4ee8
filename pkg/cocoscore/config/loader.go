package config

import (
	"fmt"

	"github.com/cognicore/cocoscore/internal/metrics"
	"github.com/cognicore/cocoscore/pkg/cocoscore/aggregate"
	"github.com/cognicore/cocoscore/pkg/cocoscore/ingest"
)

// Loader loads all input files and constructs the aggregation input
type Loader struct {
	ScoresPath   string
	MatchesPath  string
	TaxonomyPath string

	// Metrics, if set, counts loaded records and rejected files.
	Metrics *metrics.Metrics
}

// Components holds all loaded inputs
type Components struct {
	Scores   ingest.SentenceScoreIndex
	Matches  []ingest.Match // nil without a match file
	Taxonomy *ingest.Taxonomy
}

// Input returns the components as aggregation input
func (c *Components) Input() aggregate.Input {
	return aggregate.Input{
		Matches:  c.Matches,
		Scores:   c.Scores,
		Taxonomy: c.Taxonomy,
	}
}

// Load reads every configured file. A failed file aborts the whole load.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	// Load sentence scores
	if l.ScoresPath != "" {
		idx, err := ingest.LoadScoreFile(l.ScoresPath)
		if err != nil {
			l.failed("scores")
			return nil, fmt.Errorf("load scores: %w", err)
		}
		comp.Scores = idx
		l.loaded("scores", idx.Len())
	} else {
		comp.Scores = ingest.SentenceScoreIndex{}
	}

	// Load matches
	if l.MatchesPath != "" {
		matches, err := ingest.LoadMatchFile(l.MatchesPath)
		if err != nil {
			l.failed("matches")
			return nil, fmt.Errorf("load matches: %w", err)
		}
		comp.Matches = matches
		l.loaded("matches", len(matches))
	}

	// Load taxonomy
	if l.TaxonomyPath != "" {
		tax, err := ingest.LoadTaxonomy(l.TaxonomyPath)
		if err != nil {
			l.failed("taxonomy")
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
		comp.Taxonomy = tax
		l.loaded("taxonomy", tax.Len())
	}

	return comp, nil
}

func (l *Loader) loaded(kind string, n int) {
	if l.Metrics != nil {
		l.Metrics.RecordsLoaded.WithLabelValues(kind).Add(float64(n))
	}
}

func (l *Loader) failed(kind string) {
	if l.Metrics != nil {
		l.Metrics.LoadErrors.WithLabelValues(kind).Inc()
	}
}
