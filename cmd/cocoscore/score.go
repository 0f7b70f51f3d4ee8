package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/cocoscore/pkg/cocoscore"
	"github.com/cognicore/cocoscore/pkg/cocoscore/report"
)

// resultFlags control what is written after a scoring run
type resultFlags struct {
	output  string
	report  string
	json    bool
	top     int
	persist bool
}

func (f *resultFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", "-", "score TSV destination")
	fs.StringVar(&f.report, "report", "", "write an explained report of the top pairs to this file (- for stdout)")
	fs.BoolVar(&f.json, "json", false, "write the report as JSON")
	fs.IntVar(&f.top, "top", 20, "pairs explained in the report (0 for all)")
	fs.BoolVar(&f.persist, "persist", false, "save the run to the configured store")
}

func newScoreCmd(a *app) *cobra.Command {
	var (
		in  inputFlags
		out resultFlags
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score entity pairs from sentence scores and tagger matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := cocoscore.Score(cmd.Context(), in.options(cmd, a))
			if err != nil {
				return err
			}
			return a.finish(cmd.Context(), res, out)
		},
	}
	in.register(cmd.Flags())
	out.register(cmd)
	return cmd
}

func newDiseasesCmd(a *app) *cobra.Command {
	var (
		opts struct {
			matches, taxonomy     string
			documentWeight        float64
			sentenceWeight        float64
			firstType, secondType string
		}
		out resultFlags
	)
	cmd := &cobra.Command{
		Use:   "diseases",
		Short: "Score disease associations from tagger matches alone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.cfg.Disease
			dopts := cocoscore.DiseaseOptions{
				MatchesPath:    opts.matches,
				TaxonomyPath:   opts.taxonomy,
				DocumentWeight: d.DocumentWeight,
				SentenceWeight: d.SentenceWeight,
				Types:          d.Types,
				Workers:        a.cfg.Workers,
				Metrics:        a.metrics,
			}
			fs := cmd.Flags()
			if fs.Changed("document-weight") {
				dopts.DocumentWeight = opts.documentWeight
			}
			if fs.Changed("sentence-weight") {
				dopts.SentenceWeight = opts.sentenceWeight
			}
			if fs.Changed("first-type") {
				dopts.Types.First = opts.firstType
			}
			if fs.Changed("second-type") {
				dopts.Types.Second = opts.secondType
			}

			res, err := cocoscore.ScoreDiseases(cmd.Context(), dopts)
			if err != nil {
				return err
			}
			return a.finish(cmd.Context(), res, out)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.matches, "matches", "", "tagger match file (TSV)")
	fs.StringVar(&opts.taxonomy, "taxonomy", "", "entity taxonomy file (gzip TSV)")
	fs.Float64Var(&opts.documentWeight, "document-weight", 0, "document granularity weight (default from config)")
	fs.Float64Var(&opts.sentenceWeight, "sentence-weight", 0, "sentence granularity weight (default from config)")
	fs.StringVar(&opts.firstType, "first-type", "", "only pair entities of this type...")
	fs.StringVar(&opts.secondType, "second-type", "", "...with entities of this type (default: any other type)")
	_ = cmd.MarkFlagRequired("matches")
	out.register(cmd)
	return cmd
}

func newCountsCmd(a *app) *cobra.Command {
	var (
		in     inputFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Write the weighted co-occurrence counts without scoring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := cocoscore.Counts(cmd.Context(), in.options(cmd, a))
			if err != nil {
				return err
			}
			w, closeFn, err := a.output(output)
			if err != nil {
				return err
			}
			if err := counts.WriteTSV(w); err != nil {
				closeFn()
				return fmt.Errorf("write counts: %w", err)
			}
			return closeFn()
		},
	}
	in.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "-", "counts TSV destination")
	return cmd
}

// finish writes the scores, the optional report and persists the run
func (a *app) finish(ctx context.Context, res *cocoscore.Result, f resultFlags) error {
	w, closeFn, err := a.output(f.output)
	if err != nil {
		return err
	}
	if err := res.Scores.WriteTSV(w); err != nil {
		closeFn()
		return fmt.Errorf("write scores: %w", err)
	}
	if err := closeFn(); err != nil {
		return err
	}

	if f.report == "" && !f.persist {
		return nil
	}
	rep := report.New().Build(res, f.top)

	if f.report != "" {
		w, closeFn, err := a.output(f.report)
		if err != nil {
			return err
		}
		if f.json {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			err = enc.Encode(rep)
		} else {
			err = rep.WriteText(w)
		}
		if err != nil {
			closeFn()
			return fmt.Errorf("write report: %w", err)
		}
		if err := closeFn(); err != nil {
			return err
		}
	}

	if f.persist {
		st, err := openStore(ctx, a.cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveRun(ctx, rep.StoreRun(res)); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		slog.Info("run saved", "id", rep.ID, "driver", a.cfg.Store.Driver)
		if strings.EqualFold(a.cfg.Store.Driver, "memory") {
			slog.Warn("memory store does not outlive the process; configure sqlite or postgres to keep runs")
		}
	}
	return nil
}
