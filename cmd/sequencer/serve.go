package main

import (
	"github.com/spf13/cobra"

	"github.com/tigerroll/sequencer/internal/app"
)

func newServeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sequencing HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			return app.Serve(cmd.Context(), cfg, o.dbAdapters)
		},
	}
}
