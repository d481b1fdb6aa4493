package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tigerroll/sequencer/internal/app"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/migration"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"
)

func newMigrateCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert the database schema",
	}
	cmd.AddCommand(
		newMigrateStepCommand(o, "up", "Apply every pending migration", (*migration.Migrator).Up),
		newMigrateStepCommand(o, "down", "Revert every applied migration", (*migration.Migrator).Down),
	)
	return cmd
}

func newMigrateStepCommand(o *options, use, short string, step func(*migration.Migrator, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Sequencer.Infrastructure.Repository != "sql" {
				return errors.New("migrate requires infrastructure.repository 'sql'")
			}
			var m *migration.Migrator
			return app.Execute(cmd.Context(), cfg, o.dbAdapters, func(ctx context.Context) error {
				if err := step(m, ctx); err != nil {
					return err
				}
				version, dirty, err := m.Version(ctx)
				if err != nil {
					return err
				}
				logger.Infof("Schema is at version %d (dirty: %t).", version, dirty)
				return nil
			}, &m)
		},
	}
}
