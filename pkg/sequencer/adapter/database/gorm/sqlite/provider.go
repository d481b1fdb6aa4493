// Package sqlite provides the GORM DBProvider for SQLite databases.
package sqlite

import (
	"errors"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database"
	dbconfig "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/config"
	gormadapter "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the SQLite DSN. Foreign keys are enabled so cascades declared
// in the schema apply; an in-memory database is shared across pooled connections.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if c.Database == ":memory:" {
		return "file::memory:?cache=shared&_foreign_keys=on"
	}
	return "file:" + c.Database + "?_foreign_keys=on"
}

// SQLiteDBProvider implements database.DBProvider for SQLite connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new `database.DBProvider` for SQLite.
//
// This function is intended to be used with `fx.Provide` to register the SQLite DBProvider
// in the application's dependency injection graph.
//
// Parameters:
//
//	cfg: The application's global configuration.
//
// Returns:
//
//	A `database.DBProvider` instance configured for SQLite.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "sqlite")}
}
