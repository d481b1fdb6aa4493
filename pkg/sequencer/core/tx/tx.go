// Package tx provides the transaction abstraction used by repositories that need
// several writes to succeed or fail together.
package tx

import (
	"context"
	"database/sql"
	"errors"
)

// TxExecutor defines the write operations available both inside and outside a transaction.
type TxExecutor interface {
	// ExecuteUpdate performs a write operation on the specified model.
	//
	// operation is one of "CREATE", "UPDATE" or "DELETE". query holds column
	// conditions combined with AND; slice values become IN conditions.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpdateColumns sets the given columns on every row of tableName matching query.
	// Unlike ExecuteUpdate with a struct model, zero values and NULLs are written.
	ExecuteUpdateColumns(ctx context.Context, tableName string, query map[string]interface{}, values map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model, updating updateColumns when conflictColumns collide.
	// An empty updateColumns list means DO NOTHING.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
}

// Tx represents an ongoing database transaction.
type Tx interface {
	TxExecutor

	// Savepoint creates a new savepoint within the current transaction.
	Savepoint(name string) error
	// RollbackToSavepoint rolls back the transaction to the named savepoint.
	RollbackToSavepoint(name string) error
}

// TransactionManager manages the lifecycle of database transactions.
type TransactionManager interface {
	// Begin starts a new database transaction.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit commits the specified transaction.
	Commit(tx Tx) error
	// Rollback rolls back the specified transaction.
	Rollback(tx Tx) error
}

type txKey struct{}

// WithTx returns a context carrying t. Repositories join t when called with the returned context.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txKey{}, t)
}

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txKey{}).(Tx)
	return t, ok
}

// Run executes fn inside a transaction started by m. The transaction is committed
// when fn returns nil and rolled back otherwise. A context already carrying a
// transaction joins it instead of starting a new one.
func Run(ctx context.Context, m TransactionManager, fn func(ctx context.Context) error) (err error) {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}
	t, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = m.Rollback(t)
			panic(p)
		}
	}()
	if err = fn(WithTx(ctx, t)); err != nil {
		if rbErr := m.Rollback(t); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return m.Commit(t)
}
