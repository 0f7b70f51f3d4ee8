// Package cocoscore scores entity associations from co-mentions in text.
//
// Co-mention evidence (sentence confidence scores or positional matches) is
// aggregated into weighted counts per pair and entity, and the counts are
// combined into a normalized co-occurrence score:
//
//	S(a,b) = C_ab^w * (C_ab * C / (C_a * C_b))^(1-w)
package cocoscore

import (
	"context"
	"log/slog"

	"github.com/cognicore/cocoscore/internal/metrics"
	"github.com/cognicore/cocoscore/pkg/cocoscore/aggregate"
	"github.com/cognicore/cocoscore/pkg/cocoscore/config"
	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
)

// Default granularity weights
const (
	DefaultDocumentWeight    = 15.0
	DefaultParagraphWeight   = 0.0
	DefaultSentenceWeight    = 1.0
	DefaultWeightingExponent = 0.6
)

// DiseaseWeightingExponent is the fixed exponent of the disease pipeline
const DiseaseWeightingExponent = 0.6

// Pipeline names used in logs, metrics and stored runs
const (
	PipelineGeneral = "general"
	PipelineDisease = "disease"
)

// Options configures the general scoring pipeline
type Options struct {
	MatchesPath  string // optional; without it every scored sentence is a co-mention
	ScoresPath   string
	TaxonomyPath string // optional

	DocumentWeight    float64
	ParagraphWeight   float64
	SentenceWeight    float64
	WeightingExponent float64
	IgnoreScores      bool
	Types             aggregate.PairTypes
	Workers           int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// DefaultOptions returns options with the standard weights and exponent
func DefaultOptions() Options {
	return Options{
		DocumentWeight:    DefaultDocumentWeight,
		ParagraphWeight:   DefaultParagraphWeight,
		SentenceWeight:    DefaultSentenceWeight,
		WeightingExponent: DefaultWeightingExponent,
	}
}

func (o Options) aggregateConfig() aggregate.Config {
	return aggregate.Config{
		DocumentWeight:  o.DocumentWeight,
		ParagraphWeight: o.ParagraphWeight,
		SentenceWeight:  o.SentenceWeight,
		IgnoreScores:    o.IgnoreScores,
		Types:           o.Types,
		Workers:         o.Workers,
	}
}

// DiseaseOptions configures the disease pipeline. Scores are ignored, the
// paragraph weight is 0 and the exponent is DiseaseWeightingExponent.
type DiseaseOptions struct {
	MatchesPath  string
	TaxonomyPath string

	DocumentWeight float64
	SentenceWeight float64
	Types          aggregate.PairTypes
	Workers        int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// DefaultDiseaseOptions returns disease options with the standard weights
func DefaultDiseaseOptions() DiseaseOptions {
	return DiseaseOptions{
		DocumentWeight: DefaultDocumentWeight,
		SentenceWeight: DefaultSentenceWeight,
	}
}

// Options returns the equivalent general pipeline options
func (o DiseaseOptions) Options() Options {
	return Options{
		MatchesPath:       o.MatchesPath,
		TaxonomyPath:      o.TaxonomyPath,
		DocumentWeight:    o.DocumentWeight,
		ParagraphWeight:   0,
		SentenceWeight:    o.SentenceWeight,
		WeightingExponent: DiseaseWeightingExponent,
		IgnoreScores:      true,
		Types:             o.Types,
		Workers:           o.Workers,
		Logger:            o.Logger,
		Metrics:           o.Metrics,
	}
}

// Result holds the counts and scores of one run
type Result struct {
	Pipeline string
	Config   aggregate.Config
	Exponent float64
	Counts   *pmi.WeightedCounts
	Scores   pmi.Scores
	Stats    aggregate.Stats
}

// Score runs the general pipeline: load, aggregate, combine
func Score(ctx context.Context, opts Options) (*Result, error) {
	return run(ctx, PipelineGeneral, opts)
}

// ScoreDiseases runs the disease pipeline over a match file
func ScoreDiseases(ctx context.Context, opts DiseaseOptions) (*Result, error) {
	if opts.MatchesPath == "" {
		return nil, internalerr.Configf("disease scoring needs a match file")
	}
	return run(ctx, PipelineDisease, opts.Options())
}

// Counts loads the inputs and returns only the weighted counts
func Counts(ctx context.Context, opts Options) (*pmi.WeightedCounts, error) {
	comp, err := load(opts)
	if err != nil {
		return nil, err
	}
	agg, err := aggregate.New(opts.aggregateConfig(), aggregatorOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return agg.Aggregate(ctx, comp.Input())
}

// Compute aggregates and combines already loaded inputs
func Compute(ctx context.Context, in aggregate.Input, cfg aggregate.Config, exponent float64, opts ...aggregate.Option) (*Result, error) {
	calc, err := pmi.NewCalculator(exponent)
	if err != nil {
		return nil, err
	}
	agg, err := aggregate.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	res, err := agg.AggregateWithStats(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Result{
		Pipeline: PipelineGeneral,
		Config:   cfg,
		Exponent: exponent,
		Counts:   res.Counts,
		Scores:   calc.ScoreAll(res.Counts),
		Stats:    res.Stats,
	}, nil
}

func run(ctx context.Context, pipeline string, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("pipeline", pipeline)

	res, err := func() (*Result, error) {
		// Validate before touching any file
		if _, err := pmi.NewCalculator(opts.WeightingExponent); err != nil {
			return nil, err
		}
		if err := opts.aggregateConfig().Validate(); err != nil {
			return nil, err
		}
		comp, err := load(opts)
		if err != nil {
			return nil, err
		}
		return Compute(ctx, comp.Input(), opts.aggregateConfig(), opts.WeightingExponent, aggregatorOptions(opts)...)
	}()

	if opts.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		opts.Metrics.RunsTotal.WithLabelValues(pipeline, status).Inc()
	}
	if err != nil {
		log.Error("scoring failed", "error", err)
		return nil, err
	}

	res.Pipeline = pipeline
	if opts.Metrics != nil {
		opts.Metrics.PairsScored.WithLabelValues(pipeline).Add(float64(len(res.Scores)))
	}
	log.Info("scoring complete",
		"pairs", res.Counts.UniquePairs(),
		"entities", res.Counts.UniqueEntities(),
		"scored", len(res.Scores),
		"duration", res.Stats.Duration,
	)
	return res, nil
}

func load(opts Options) (*config.Components, error) {
	loader := &config.Loader{
		ScoresPath:   opts.ScoresPath,
		MatchesPath:  opts.MatchesPath,
		TaxonomyPath: opts.TaxonomyPath,
		Metrics:      opts.Metrics,
	}
	return loader.Load()
}

func aggregatorOptions(opts Options) []aggregate.Option {
	var out []aggregate.Option
	if opts.Logger != nil {
		out = append(out, aggregate.WithLogger(opts.Logger.With("component", "aggregate")))
	}
	if opts.Metrics != nil {
		out = append(out, aggregate.WithMetrics(opts.Metrics))
	}
	return out
}
