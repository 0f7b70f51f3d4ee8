package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cognicore/cocoscore/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			st, err := openStore(cmd.Context(), a.cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			slog.Info("serving runs", "addr", a.cfg.Server.Addr, "driver", a.cfg.Store.Driver)
			return server.New(st, a.metrics).ListenAndServe(cmd.Context(), a.cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
