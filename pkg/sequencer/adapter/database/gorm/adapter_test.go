package gorm_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	dbconfig "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/config"
	gormadapter "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm"
	_ "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm/sqlite"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/tx"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type widget struct {
	ID       string `gorm:"primaryKey"`
	Name     string
	Position int
	Owner    *string
}

func (widget) TableName() string { return "widget" }

func openSQLite(t *testing.T) (*gormadapter.GormDBAdapter, *gormadapter.SingleConnectionResolver) {
	t.Helper()
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: filepath.Join(t.TempDir(), "adapter.db"), Pool: dbconfig.PoolConfig{MaxOpenConns: 1}}
	db, err := gormadapter.Open(cfg, "SILENT")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))

	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn.(*gormadapter.GormDBAdapter), gormadapter.NewSingleConnectionResolver(conn)
}

func TestGormDBAdapter_CRUD(t *testing.T) {
	conn, _ := openSQLite(t)
	ctx := context.Background()
	owner := "alice"

	_, err := conn.ExecuteUpdate(ctx, &[]widget{
		{ID: "w1", Name: "one", Position: 2, Owner: &owner},
		{ID: "w2", Name: "two", Position: 1},
	}, "CREATE", "widget", nil)
	require.NoError(t, err)

	var rows []widget
	require.NoError(t, conn.ExecuteQueryAdvanced(ctx, &rows, nil, "position", 0))
	require.Len(t, rows, 2)
	assert.Equal(t, "w2", rows[0].ID)

	n, err := conn.ExecuteUpdateColumns(ctx, "widget", map[string]interface{}{"id": "w1"}, map[string]interface{}{"owner": nil, "position": 0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var one widget
	require.NoError(t, conn.ExecuteQueryAdvanced(ctx, &one, map[string]interface{}{"id": "w1"}, "", 1))
	assert.Nil(t, one.Owner)
	assert.Equal(t, 0, one.Position)

	_, err = conn.ExecuteUpsert(ctx, &widget{ID: "w1", Name: "renamed", Position: 5}, "widget", []string{"id"}, []string{"name"})
	require.NoError(t, err)
	require.NoError(t, conn.ExecuteQuery(ctx, &rows, map[string]interface{}{"id": []string{"w1"}}))
	require.Len(t, rows, 1)
	assert.Equal(t, "renamed", rows[0].Name)
	assert.Equal(t, 0, rows[0].Position, "only update columns are replaced")

	count, err := conn.Count(ctx, &widget{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	var names []string
	require.NoError(t, conn.Pluck(ctx, &widget{}, "name", &names, nil))
	assert.ElementsMatch(t, []string{"renamed", "two"}, names)

	_, err = conn.ExecuteUpdate(ctx, &widget{}, "DELETE", "widget", map[string]interface{}{"id": "w2"})
	require.NoError(t, err)
	count, _ = conn.Count(ctx, &widget{}, nil)
	assert.Equal(t, int64(1), count)

	_, err = conn.ExecuteUpdateColumns(ctx, "widget", nil, map[string]interface{}{"name": "x"})
	assert.Error(t, err, "unscoped column updates are refused")
}

func TestGormDBAdapter_IsTableNotExistError(t *testing.T) {
	conn, _ := openSQLite(t)
	var rows []struct{ ID string }
	err := conn.GetGormDB().Table("missing_table").Find(&rows).Error
	require.Error(t, err)
	assert.True(t, conn.IsTableNotExistError(err))
	assert.False(t, conn.IsTableNotExistError(errors.New("boom")))
	assert.False(t, conn.IsTableNotExistError(nil))
}

func TestGormTransactionManager_RollbackAndCommit(t *testing.T) {
	conn, resolver := openSQLite(t)
	manager := gormadapter.NewGormTransactionManager(resolver, "test")
	ctx := context.Background()

	failure := errors.New("abort")
	err := tx.Run(ctx, manager, func(ctx context.Context) error {
		txn, _ := tx.FromContext(ctx)
		if _, err := txn.ExecuteUpdate(ctx, &widget{ID: "rolled-back"}, "CREATE", "widget", nil); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)

	require.NoError(t, tx.Run(ctx, manager, func(ctx context.Context) error {
		txn, ok := tx.FromContext(ctx)
		if !ok {
			return errors.New("no transaction in context")
		}
		_, err := txn.ExecuteUpdate(ctx, &widget{ID: "committed"}, "CREATE", "widget", nil)
		return err
	}))

	var rows []widget
	require.NoError(t, conn.ExecuteQuery(ctx, &rows, nil))
	require.Len(t, rows, 1)
	assert.Equal(t, "committed", rows[0].ID)
}

func TestGormDBAdapter_UpdateColumnsWithSQLMock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "mysql"}, "mock")
	require.NoError(t, err)

	mock.ExpectExec("UPDATE `widget` SET `position`=\\? WHERE `id` = \\?").
		WithArgs(3, "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := conn.ExecuteUpdateColumns(context.Background(), "widget", map[string]interface{}{"id": "w1"}, map[string]interface{}{"position": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectorRegistry(t *testing.T) {
	_, err := gormadapter.GetDialectorFactory("sqlite")
	assert.NoError(t, err)
	_, err = gormadapter.GetDialectorFactory("oracle")
	assert.Error(t, err)
}
