package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tigerroll/sequencer/internal/app"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/application/usecase"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"
)

func newRecalculateCommand(o *options) *cobra.Command {
	var actor model.Actor
	var jobID string
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Recalculate the dependencies and requirements of one job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			var svc usecase.JobOperationService
			return app.Execute(cmd.Context(), cfg, o.dbAdapters, func(ctx context.Context) error {
				res, err := svc.RecalculateJob(ctx, actor, jobID)
				if err != nil {
					return err
				}
				if res.Stale {
					return errors.New("recalculation left the job stale")
				}
				changed, rows := 0, 0
				if res.Dependencies != nil {
					changed = res.Dependencies.Changed
				}
				if res.Requirements != nil {
					rows = len(res.Requirements.Requirements)
				}
				logger.Infof("Job %s recalculated: %d dependency sets changed, %d requirement rows written.", jobID, changed, rows)
				return nil
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&actor.CompanyID, "company", "", "company the job belongs to")
	cmd.Flags().StringVar(&actor.UserID, "user", "", "user recorded as the updater")
	cmd.Flags().StringVar(&jobID, "job", "", "job to recalculate")
	for _, name := range []string{"company", "user", "job"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
