// Package postgres provides the GORM DBProvider for PostgreSQL databases.
package postgres

import (
	"fmt"
	"strings"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database"
	dbconfig "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/config"
	gormadapter "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gormadapter.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the key/value DSN expected by gorm.io/driver/postgres.
//
// Parameters:
//
//	c: The `dbconfig.DatabaseConfig` containing connection details.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("user=%s", c.User),
		fmt.Sprintf("password=%s", c.Password),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if c.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.Schema))
	}
	return strings.Join(parts, " ")
}

// PostgresDBProvider implements database.DBProvider for PostgreSQL connections.
type PostgresDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new `database.DBProvider` for PostgreSQL. Redshift connections
// use the same provider.
//
// Parameters:
//
//	cfg: The application's global configuration.
//
// Returns:
//
//	A `database.DBProvider` instance configured for PostgreSQL.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &PostgresDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "postgres")}
}
