// Package sql implements repository.SequencingRepository on a relational database
// through the database adapter and its transaction manager.
package sql

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/database"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/tx"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"

	"github.com/shopspring/decimal"
)

// SQLSequencingRepository implements the repository.SequencingRepository interface.
type SQLSequencingRepository struct {
	dbResolver database.DBConnectionResolver
	// txManager starts the transactions InTransaction runs in.
	txManager tx.TransactionManager
	// dbName is the name of the database connection used by this repository (e.g., "sequencer").
	dbName string
}

// Verify that SQLSequencingRepository implements the repository.SequencingRepository interface.
var _ repository.SequencingRepository = (*SQLSequencingRepository)(nil)

// NewSQLSequencingRepository creates a new instance of SQLSequencingRepository.
func NewSQLSequencingRepository(dbResolver database.DBConnectionResolver, txManager tx.TransactionManager, dbName string) *SQLSequencingRepository {
	return &SQLSequencingRepository{dbResolver: dbResolver, txManager: txManager, dbName: dbName}
}

// reader is the query side of an executor. Both database connections and open
// transactions of the GORM adapter implement it.
type reader interface {
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error
	Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error
	IsTableNotExistError(err error) bool
}

// getDBConnection resolves the connection of this repository.
func (r *SQLSequencingRepository) getDBConnection(ctx context.Context) (database.DBConnection, error) {
	conn, err := r.dbResolver.ResolveDBConnection(ctx, r.dbName)
	if err != nil {
		return nil, exception.NewInternalError("SQLSequencingRepository", fmt.Sprintf("failed to resolve DB connection '%s'", r.dbName), err)
	}
	return conn, nil
}

// getTxExecutor returns the transaction carried by ctx, or the plain connection outside one.
func (r *SQLSequencingRepository) getTxExecutor(ctx context.Context) (tx.TxExecutor, error) {
	if t, ok := tx.FromContext(ctx); ok {
		return t, nil
	}
	return r.getDBConnection(ctx)
}

// getReader returns the executor reads go through. Reads inside a transaction see
// its uncommitted writes and do not wait for a second pooled connection.
func (r *SQLSequencingRepository) getReader(ctx context.Context) (reader, error) {
	if t, ok := tx.FromContext(ctx); ok {
		if rd, ok := t.(reader); ok {
			return rd, nil
		}
	}
	return r.getDBConnection(ctx)
}

// dbError wraps a database failure. A missing table points at unapplied migrations.
func dbError(op, msg string, isTableNotExist func(error) bool, err error) error {
	if isTableNotExist(err) {
		return exception.NewInternalError(op, msg+": schema is missing, run 'sequencer migrate up'", err)
	}
	return exception.NewInternalError(op, msg, err)
}

func (r *SQLSequencingRepository) create(ctx context.Context, op string, entity interface{ TableName() string }, what string) error {
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	if _, err := executor.ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		return dbError(op, "failed to save "+what, executor.IsTableNotExistError, err)
	}
	return nil
}

// updateColumns writes values on the rows matching query. When notFound is set and no
// row matched, it is returned wrapped with the query.
func (r *SQLSequencingRepository) updateColumns(ctx context.Context, op, table string, query, values map[string]interface{}, notFound error) (int64, error) {
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return 0, err
	}
	n, err := executor.ExecuteUpdateColumns(ctx, table, query, values)
	if err != nil {
		return 0, dbError(op, "failed to update "+table, executor.IsTableNotExistError, err)
	}
	if n == 0 && notFound != nil {
		return 0, fmt.Errorf("%w: %v", notFound, query["id"])
	}
	return n, nil
}

func (r *SQLSequencingRepository) remove(ctx context.Context, op string, entity interface{ TableName() string }, query map[string]interface{}) (int64, error) {
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return 0, err
	}
	n, err := executor.ExecuteUpdate(ctx, entity, "DELETE", entity.TableName(), query)
	if err != nil {
		return 0, dbError(op, "failed to delete from "+entity.TableName(), executor.IsTableNotExistError, err)
	}
	return n, nil
}

func (r *SQLSequencingRepository) query(ctx context.Context, op string, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	rd, err := r.getReader(ctx)
	if err != nil {
		return err
	}
	if err := rd.ExecuteQueryAdvanced(ctx, target, query, orderBy, limit); err != nil {
		return dbError(op, "query failed", rd.IsTableNotExistError, err)
	}
	return nil
}

func stamp(updatedBy string, at time.Time, values map[string]interface{}) map[string]interface{} {
	values["updated_by"] = updatedBy
	values["updated_at"] = at
	return values
}

// InTransaction runs fn in a database transaction. Nested calls join the outer one.
func (r *SQLSequencingRepository) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, r.txManager, fn)
}

// Close is a no-op: connections belong to the resolver, which closes them on shutdown.
func (r *SQLSequencingRepository) Close() error {
	return nil
}

// --- Job implementation ---

func (r *SQLSequencingRepository) SaveJob(ctx context.Context, job *model.Job) error {
	return r.create(ctx, "SQLSequencingRepository.SaveJob", fromDomainJob(job), fmt.Sprintf("job %s", job.ID))
}

func (r *SQLSequencingRepository) FindJob(ctx context.Context, companyID, jobID string) (*model.Job, error) {
	var entities []JobEntity
	if err := r.query(ctx, "SQLSequencingRepository.FindJob", &entities, map[string]interface{}{"id": jobID, "company_id": companyID}, "", 1); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrJobNotFound, jobID)
	}
	return toDomainJob(&entities[0]), nil
}

// --- MakeMethod implementation ---

func (r *SQLSequencingRepository) SaveMakeMethod(ctx context.Context, method *model.JobMakeMethod) error {
	return r.create(ctx, "SQLSequencingRepository.SaveMakeMethod", fromDomainMakeMethod(method), fmt.Sprintf("make method %s", method.ID))
}

func (r *SQLSequencingRepository) FindMakeMethod(ctx context.Context, companyID, id string) (*model.JobMakeMethod, error) {
	var entities []JobMakeMethodEntity
	if err := r.query(ctx, "SQLSequencingRepository.FindMakeMethod", &entities, map[string]interface{}{"id": id, "company_id": companyID}, "", 1); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrMakeMethodNotFound, id)
	}
	return toDomainMakeMethod(&entities[0]), nil
}

func (r *SQLSequencingRepository) ListMakeMethodsByJob(ctx context.Context, companyID, jobID string) ([]*model.JobMakeMethod, error) {
	var entities []JobMakeMethodEntity
	if err := r.query(ctx, "SQLSequencingRepository.ListMakeMethodsByJob", &entities, map[string]interface{}{"company_id": companyID, "job_id": jobID}, "created_at, id", 0); err != nil {
		return nil, err
	}
	methods := make([]*model.JobMakeMethod, len(entities))
	for i := range entities {
		methods[i] = toDomainMakeMethod(&entities[i])
	}
	sort.SliceStable(methods, func(i, j int) bool {
		return methods[i].IsRoot() && !methods[j].IsRoot()
	})
	return methods, nil
}

func (r *SQLSequencingRepository) UpdateMakeMethodQuantity(ctx context.Context, id string, quantity decimal.Decimal, updatedBy string, at time.Time) error {
	_, err := r.updateColumns(ctx, "SQLSequencingRepository.UpdateMakeMethodQuantity", JobMakeMethodEntity{}.TableName(),
		map[string]interface{}{"id": id},
		stamp(updatedBy, at, map[string]interface{}{"quantity": quantity}),
		repository.ErrMakeMethodNotFound)
	return err
}

// --- Material implementation ---

func (r *SQLSequencingRepository) SaveMaterial(ctx context.Context, material *model.JobMaterial) error {
	return r.create(ctx, "SQLSequencingRepository.SaveMaterial", fromDomainMaterial(material), fmt.Sprintf("material %s", material.ID))
}

func (r *SQLSequencingRepository) FindMaterial(ctx context.Context, companyID, id string) (*model.JobMaterial, error) {
	var entities []JobMaterialEntity
	if err := r.query(ctx, "SQLSequencingRepository.FindMaterial", &entities, map[string]interface{}{"id": id, "company_id": companyID}, "", 1); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrMaterialNotFound, id)
	}
	return toDomainMaterial(&entities[0]), nil
}

func (r *SQLSequencingRepository) ListMaterialsByJob(ctx context.Context, companyID, jobID string) ([]*model.JobMaterial, error) {
	const op = "SQLSequencingRepository.ListMaterialsByJob"
	rd, err := r.getReader(ctx)
	if err != nil {
		return nil, err
	}
	var methodIDs []string
	if err := rd.Pluck(ctx, &JobMakeMethodEntity{}, "id", &methodIDs, map[string]interface{}{"company_id": companyID, "job_id": jobID}); err != nil {
		return nil, dbError(op, "failed to list make methods", rd.IsTableNotExistError, err)
	}
	if len(methodIDs) == 0 {
		return nil, nil
	}

	var entities []JobMaterialEntity
	if err := r.query(ctx, op, &entities, map[string]interface{}{"company_id": companyID, "job_make_method_id": methodIDs}, "created_at, id", 0); err != nil {
		return nil, err
	}
	materials := make([]*model.JobMaterial, len(entities))
	for i := range entities {
		materials[i] = toDomainMaterial(&entities[i])
	}
	return materials, nil
}

func (r *SQLSequencingRepository) UpdateMaterialEstimate(ctx context.Context, id string, estimated decimal.Decimal, updatedBy string, at time.Time) error {
	_, err := r.updateColumns(ctx, "SQLSequencingRepository.UpdateMaterialEstimate", JobMaterialEntity{}.TableName(),
		map[string]interface{}{"id": id},
		stamp(updatedBy, at, map[string]interface{}{"estimated_quantity": estimated}),
		repository.ErrMaterialNotFound)
	return err
}

func (r *SQLSequencingRepository) DetachMaterialsFromOperation(ctx context.Context, operationID, updatedBy string, at time.Time) (int64, error) {
	return r.updateColumns(ctx, "SQLSequencingRepository.DetachMaterialsFromOperation", JobMaterialEntity{}.TableName(),
		map[string]interface{}{"job_operation_id": operationID},
		stamp(updatedBy, at, map[string]interface{}{"job_operation_id": nil}),
		nil)
}
