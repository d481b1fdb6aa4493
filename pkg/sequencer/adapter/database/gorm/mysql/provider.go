// Package mysql provides the GORM DBProvider for MySQL databases.
package mysql

import (
	"strconv"
	"time"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database"
	dbconfig "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/config"
	gormadapter "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/config"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds the DSN with go-sql-driver's Config so credentials are escaped.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := mysqldriver.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = c.Host
	if c.Port != 0 {
		dsn.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	}
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	// Migrations are applied one file per statement batch.
	dsn.MultiStatements = true
	// Report matched rather than changed rows so updates can detect missing records.
	dsn.ClientFoundRows = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// MySQLDBProvider implements database.DBProvider for MySQL connections.
type MySQLDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the MySQL database.DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &MySQLDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "mysql")}
}
