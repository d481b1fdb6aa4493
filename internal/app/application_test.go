package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/tigerroll/sequencer/internal/app"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/application/usecase"
	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/migration"
	"github.com/tigerroll/sequencer/pkg/sequencer/transport/api"

	"github.com/shopspring/decimal"
)

func testConfig(t *testing.T, repo string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Sequencer.Infrastructure.Repository = repo
	cfg.Sequencer.Telemetry.MetricsBackend = "none"
	cfg.Sequencer.Telemetry.TracesExporter = "none"
	cfg.Sequencer.AdapterConfigs = map[string]interface{}{
		"database": map[string]interface{}{
			"sequencer": map[string]interface{}{
				"type":     "sqlite",
				"database": filepath.Join(t.TempDir(), "sequencer.db"),
				"pool":     map[string]interface{}{"max_open_conns": 1},
			},
		},
		"storage": map[string]interface{}{
			"exports": map[string]interface{}{
				"type":     "local",
				"base_dir": t.TempDir(),
			},
		},
	}
	return cfg
}

func TestDBProviderOptions(t *testing.T) {
	assert.Len(t, app.DBProviderOptions(""), 3)
	assert.Len(t, app.DBProviderOptions("sqlite, unknown"), 1)
	assert.Len(t, app.DBProviderOptions("postgres,redshift"), 1, "redshift shares the postgres provider")
}

func TestOptionsValidate(t *testing.T) {
	for _, repo := range []string{"sql", "inmemory"} {
		t.Run(repo, func(t *testing.T) {
			err := fx.ValidateApp(app.Options(testConfig(t, repo), "sqlite"), api.Module)
			assert.NoError(t, err)
		})
	}
}

func TestExecuteMigratesAndServesSQLRepository(t *testing.T) {
	cfg := testConfig(t, "sql")
	ctx := context.Background()

	var migrator *migration.Migrator
	require.NoError(t, app.Execute(ctx, cfg, "sqlite", func(ctx context.Context) error {
		return migrator.Up(ctx)
	}, &migrator))

	var (
		repo repository.SequencingRepository
		svc  usecase.JobOperationService
	)
	actor := model.Actor{CompanyID: "c1", UserID: "u1"}
	require.NoError(t, app.Execute(ctx, cfg, "sqlite", func(ctx context.Context) error {
		if err := repo.SaveJob(ctx, &model.Job{ID: "j1", CompanyID: "c1", Quantity: decimal.NewFromInt(4)}); err != nil {
			return err
		}
		if err := repo.SaveMakeMethod(ctx, &model.JobMakeMethod{ID: "m0", JobID: "j1", CompanyID: "c1"}); err != nil {
			return err
		}
		if _, err := svc.InsertOperation(ctx, actor, usecase.NewOperation{JobID: "j1", JobMakeMethodID: "m0", Description: "Cut"}); err != nil {
			return err
		}
		_, err := svc.RecalculateJob(ctx, actor, "j1")
		return err
	}, &repo, &svc))
}
