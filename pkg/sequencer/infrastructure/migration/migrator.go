// Package migration applies the embedded schema of the sequencing service with golang-migrate.
package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database"
	gormadapter "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm"
	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationsTable tracks the applied schema version.
const MigrationsTable = "sequencer_schema_migrations"

//go:embed resource
var resources embed.FS

// Migrator applies and reverts the schema on one named database connection.
type Migrator struct {
	resolver database.DBConnectionResolver
	dbName   string
}

// NewMigrator creates a Migrator for the connection named by dbName.
//
// Parameters:
//
//	resolver: Resolves dbName to its connection settings.
//	dbName: The name of the database connection in the configuration.
func NewMigrator(resolver database.DBConnectionResolver, dbName string) *Migrator {
	return &Migrator{resolver: resolver, dbName: dbName}
}

// NewSequencerMigrator creates the Migrator of the sequencer database connection.
func NewSequencerMigrator(resolver database.DBConnectionResolver, cfg *config.Config) *Migrator {
	return NewMigrator(resolver, cfg.Sequencer.Infrastructure.SequencerDBRef)
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, "up", func(mi *migrate.Migrate) error { return mi.Up() })
}

// Down reverts every applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, "down", func(mi *migrate.Migrate) error { return mi.Down() })
}

// Version returns the applied schema version and whether the last migration left it dirty.
// A database without any applied migration reports version 0.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, err error) {
	err = m.with(ctx, func(mi *migrate.Migrate, _ string) error {
		version, dirty, err = mi.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty, err = 0, false, nil
		}
		return err
	})
	return version, dirty, err
}

func (m *Migrator) run(ctx context.Context, command string, fn func(mi *migrate.Migrate) error) error {
	return m.with(ctx, func(mi *migrate.Migrate, dbType string) error {
		logger.Infof("Executing migration '%s' on '%s' (%s, table %s).", command, m.dbName, dbType, MigrationsTable)
		err := fn(mi)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Infof("Migration '%s': schema of '%s' is already current.", command, m.dbName)
			return nil
		}
		if err != nil {
			if v, dirty, vErr := mi.Version(); vErr == nil {
				logger.Errorf("Migration '%s' failed at version %d (dirty: %t).", command, v, dirty)
			}
			return fmt.Errorf("migration '%s' failed on '%s': %w", command, m.dbName, err)
		}
		logger.Infof("Migration '%s' completed on '%s'.", command, m.dbName)
		return nil
	})
}

// with runs fn on a migrate instance backed by a dedicated pool. golang-migrate closes
// the *sql.DB it is given, so the shared connection of the resolver is never handed over.
func (m *Migrator) with(ctx context.Context, fn func(mi *migrate.Migrate, dbType string) error) error {
	conn, err := m.resolver.ResolveDBConnection(ctx, m.dbName)
	if err != nil {
		return fmt.Errorf("failed to resolve database connection '%s': %w", m.dbName, err)
	}
	cfg := conn.Config()

	gdb, err := gormadapter.Open(cfg, string(config.LogLevelSilent))
	if err != nil {
		return fmt.Errorf("failed to open migration connection to '%s': %w", m.dbName, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB of '%s': %w", m.dbName, err)
	}

	var driver migratedb.Driver
	switch cfg.Type {
	case "postgres":
		driver, err = postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable, SchemaName: cfg.Schema})
	case "mysql":
		driver, err = mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite":
		driver, err = sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: MigrationsTable})
	default:
		err = fmt.Errorf("unsupported database type for migration: %s", cfg.Type)
	}
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(resources, "resource/"+cfg.Type)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to open embedded migrations for %s: %w", cfg.Type, err)
	}
	mi, err := migrate.NewWithInstance("iofs", source, cfg.Type, driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := mi.Close(); srcErr != nil || dbErr != nil {
			logger.Warnf("Closing migration of '%s': source %v, database %v", m.dbName, srcErr, dbErr)
		}
	}()
	return fn(mi, cfg.Type)
}
