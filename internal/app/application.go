// Package app assembles the sequencing service from its Fx modules.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm"
	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm/mysql"
	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm/postgres"
	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm/sqlite"
	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage"
	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage/gcs"
	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage/local"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/application/usecase"
	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/export"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/metrics"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/migration"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/repository/sql"
	"github.com/tigerroll/sequencer/pkg/sequencer/listener"
	"github.com/tigerroll/sequencer/pkg/sequencer/listener/logging"
	listenermetrics "github.com/tigerroll/sequencer/pkg/sequencer/listener/metrics"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"
	"github.com/tigerroll/sequencer/pkg/sequencer/transport/api"
)

// DefaultDBAdapters is the adapter list used when none is configured.
const DefaultDBAdapters = "postgres,mysql,sqlite"

// DBProviderModules maps an adapter name to the module registering its DBProvider.
var DBProviderModules = map[string]fx.Option{
	"postgres": postgres.Module,
	"redshift": postgres.Module,
	"mysql":    mysql.Module,
	"sqlite":   sqlite.Module,
}

// DBProviderOptions selects DB provider modules from a comma-separated adapter list.
// Unknown names are skipped with a warning.
func DBProviderOptions(adapters string) []fx.Option {
	if strings.TrimSpace(adapters) == "" {
		adapters = DefaultDBAdapters
	}
	options := make([]fx.Option, 0)
	seen := make(map[string]bool)
	for _, name := range strings.Split(adapters, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		module, ok := DBProviderModules[name]
		if !ok {
			logger.Warnf("DB Provider '%s' is configured but not recognized/supported. Skipping.", name)
			continue
		}
		// redshift shares the postgres module, which must be registered once.
		if name == "redshift" {
			name = "postgres"
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		options = append(options, module)
		logger.Debugf("DB Provider '%s' selected and registered.", name)
	}
	return options
}

// repositoryOptions selects the SequencingRepository implementation.
func repositoryOptions(cfg *config.Config) fx.Option {
	if cfg.Sequencer.Infrastructure.Repository == "inmemory" {
		logger.Warnf("Using the in-memory repository. Data is lost on shutdown.")
		return inmemory.Module
	}
	return fx.Options(sqlrepo.Module, migration.Module)
}

// Options returns every module of the service except the HTTP server.
func Options(cfg *config.Config, dbAdapters string) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		logger.Module,
		config.Module,

		fx.Options(DBProviderOptions(dbAdapters)...),
		gormadapter.Module,
		storage.Module,
		local.Module,
		gcs.Module,
		repositoryOptions(cfg),

		metrics.Module,
		listener.Module,
		logging.Module,
		listenermetrics.Module,

		usecase.Module,
		export.Module,
	)
}

// Serve runs the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config, dbAdapters string) error {
	application := fx.New(Options(cfg, dbAdapters), api.Module)
	if err := application.Err(); err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Warnf("Context cancelled. Shutting down.")
	case sig := <-application.Done():
		logger.Warnf("Received signal '%v'. Shutting down.", sig)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), application.StopTimeout())
	defer cancel()
	logger.Infof("Application is shutting down.")
	return application.Stop(stopCtx)
}

// Execute builds the service without the HTTP server, populates targets, and runs fn
// between the start and stop of the application.
func Execute(ctx context.Context, cfg *config.Config, dbAdapters string, fn func(ctx context.Context) error, targets ...interface{}) error {
	application := fx.New(Options(cfg, dbAdapters), fx.Populate(targets...))
	if err := application.Err(); err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), application.StopTimeout())
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		logger.Errorf("Failed to stop application: %v", err)
	}
	return runErr
}
