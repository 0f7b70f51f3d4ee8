package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cognicore/cocoscore/pkg/cocoscore/maintenance"
)

func newPruneCmd(a *app) *cobra.Command {
	p := &maintenance.Pruner{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored runs outside a retention policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), a.cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			p.Store = st
			res, err := p.Prune(cmd.Context())
			if err != nil {
				return err
			}
			slog.Info("prune complete", "examined", res.Examined, "deleted", len(res.Deleted), "errors", res.Errors)
			for _, id := range res.Deleted {
				fmt.Fprintln(a.stdout, id)
			}
			if res.Errors > 0 {
				return fmt.Errorf("%d runs could not be deleted", res.Errors)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&p.Keep, "keep", 0, "keep the newest N runs")
	fs.DurationVar(&p.MaxAge, "max-age", 0, "delete runs older than this (e.g. 720h)")
	fs.StringVar(&p.Pipeline, "pipeline", "", "only prune runs of this pipeline")
	return cmd
}
