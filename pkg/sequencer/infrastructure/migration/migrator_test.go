package migration_test

import (
	"context"
	"path/filepath"
	"testing"

	dbconfig "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/config"
	gormadapter "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm"
	_ "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm/sqlite"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/migration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tables = []string{
	"job", "job_make_method", "job_material", "job_operation", "job_operation_step",
	"job_operation_parameter", "job_operation_tool", "maintenance_dispatch_item",
	"job_operation_requirement", "graph_recompute_audit",
}

func TestMigrator_UpDown(t *testing.T) {
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: filepath.Join(t.TempDir(), "schema.db")}
	db, err := gormadapter.Open(cfg, "SILENT")
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "sequencer")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	m := migration.NewMigrator(gormadapter.NewSingleConnectionResolver(conn), "sequencer")
	ctx := context.Background()

	v, dirty, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx), "an up-to-date schema is not an error")
	for _, table := range tables {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	v, _, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	require.NoError(t, conn.RefreshConnection(ctx), "the shared connection stays open")

	require.NoError(t, m.Down(ctx))
	for _, table := range tables {
		assert.False(t, db.Migrator().HasTable(table), table)
	}
}

func TestMigrator_UnsupportedType(t *testing.T) {
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: filepath.Join(t.TempDir(), "x.db")}
	db, err := gormadapter.Open(cfg, "SILENT")
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "oracle"}, "x")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	err = migration.NewMigrator(gormadapter.NewSingleConnectionResolver(conn), "x").Up(context.Background())
	assert.Error(t, err)
}
