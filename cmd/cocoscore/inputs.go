package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cognicore/cocoscore/pkg/cocoscore"
)

// inputFlags are the file and weighting flags shared by score and counts
type inputFlags struct {
	matches  string
	scores   string
	taxonomy string

	documentWeight  float64
	paragraphWeight float64
	sentenceWeight  float64
	exponent        float64
	ignoreScores    bool
	firstType       string
	secondType      string
	workers         int
}

func (f *inputFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.matches, "matches", "", "tagger match file (TSV)")
	fs.StringVar(&f.scores, "scores", "", "sentence score file (TSV)")
	fs.StringVar(&f.taxonomy, "taxonomy", "", "entity taxonomy file (gzip TSV)")
	fs.Float64Var(&f.documentWeight, "document-weight", 0, "document granularity weight (default from config)")
	fs.Float64Var(&f.paragraphWeight, "paragraph-weight", 0, "paragraph granularity weight (default from config)")
	fs.Float64Var(&f.sentenceWeight, "sentence-weight", 0, "sentence granularity weight (default from config)")
	fs.Float64Var(&f.exponent, "exponent", 0, "weighting exponent in [0,1] (default from config)")
	fs.BoolVar(&f.ignoreScores, "ignore-scores", false, "count every sentence co-mention as 1")
	fs.StringVar(&f.firstType, "first-type", "", "only pair entities of this type...")
	fs.StringVar(&f.secondType, "second-type", "", "...with entities of this type (default: any other type)")
	fs.IntVar(&f.workers, "workers", 0, "pairs pooled concurrently (default from config)")
}

// options merges the configuration with explicitly set flags
func (f *inputFlags) options(cmd *cobra.Command, a *app) cocoscore.Options {
	cfg := a.cfg
	opts := cocoscore.Options{
		MatchesPath:       f.matches,
		ScoresPath:        f.scores,
		TaxonomyPath:      f.taxonomy,
		DocumentWeight:    cfg.Weights.Document,
		ParagraphWeight:   cfg.Weights.Paragraph,
		SentenceWeight:    cfg.Weights.Sentence,
		WeightingExponent: cfg.WeightingExponent,
		IgnoreScores:      cfg.IgnoreScores,
		Types:             cfg.Types,
		Workers:           cfg.Workers,
		Metrics:           a.metrics,
	}

	fs := cmd.Flags()
	if fs.Changed("document-weight") {
		opts.DocumentWeight = f.documentWeight
	}
	if fs.Changed("paragraph-weight") {
		opts.ParagraphWeight = f.paragraphWeight
	}
	if fs.Changed("sentence-weight") {
		opts.SentenceWeight = f.sentenceWeight
	}
	if fs.Changed("exponent") {
		opts.WeightingExponent = f.exponent
	}
	if fs.Changed("ignore-scores") {
		opts.IgnoreScores = f.ignoreScores
	}
	if fs.Changed("first-type") {
		opts.Types.First = f.firstType
	}
	if fs.Changed("second-type") {
		opts.Types.Second = f.secondType
	}
	if fs.Changed("workers") {
		opts.Workers = f.workers
	}
	return opts
}
