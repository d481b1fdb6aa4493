// Package inmemory provides an in-memory implementation of the SequencingRepository interface.
// It stores all sequencing data in maps within memory, suitable for testing and for
// running the service without a database.
package inmemory

import (
	"context"
	"sync"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
)

// state holds every table of the repository. Values are stored by value so that
// callers never share memory with the repository.
type state struct {
	jobs          map[string]model.Job
	methods       map[string]model.JobMakeMethod
	materials     map[string]model.JobMaterial
	operations    map[string]model.Operation
	steps         map[string]model.OperationStep
	parameters    map[string]model.OperationParameter
	tools         map[string]model.OperationTool
	dispatchItems map[string]model.MaintenanceDispatchItem
	requirements  map[string]model.OperationRequirement
	audits        []model.GraphRecomputeAudit
}

func newState() state {
	return state{
		jobs:          make(map[string]model.Job),
		methods:       make(map[string]model.JobMakeMethod),
		materials:     make(map[string]model.JobMaterial),
		operations:    make(map[string]model.Operation),
		steps:         make(map[string]model.OperationStep),
		parameters:    make(map[string]model.OperationParameter),
		tools:         make(map[string]model.OperationTool),
		dispatchItems: make(map[string]model.MaintenanceDispatchItem),
		requirements:  make(map[string]model.OperationRequirement),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	for k, v := range s.methods {
		c.methods[k] = v
	}
	for k, v := range s.materials {
		c.materials[k] = v
	}
	for k, v := range s.operations {
		v.DependsOn = append([]string(nil), v.DependsOn...)
		c.operations[k] = v
	}
	for k, v := range s.steps {
		c.steps[k] = v
	}
	for k, v := range s.parameters {
		c.parameters[k] = v
	}
	for k, v := range s.tools {
		c.tools[k] = v
	}
	for k, v := range s.dispatchItems {
		c.dispatchItems[k] = v
	}
	for k, v := range s.requirements {
		c.requirements[k] = v
	}
	c.audits = append([]model.GraphRecomputeAudit(nil), s.audits...)
	return c
}

// InMemorySequencingRepository is an in-memory implementation of the SequencingRepository interface.
type InMemorySequencingRepository struct {
	data state
	mu   sync.RWMutex // Mutex to protect concurrent access to maps.
	txMu sync.Mutex   // Held by a transaction and by writes made outside one.
}

// NewInMemorySequencingRepository creates and initializes a new instance of InMemorySequencingRepository.
func NewInMemorySequencingRepository() *InMemorySequencingRepository {
	return &InMemorySequencingRepository{data: newState()}
}

type txKey struct{}

// InTransaction runs fn and restores the previous state when fn returns an error.
// Nested calls join the outer transaction. Writes made outside a transaction wait
// until it ends, so a rollback never discards them.
func (r *InMemorySequencingRepository) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	snapshot := r.data.clone()
	r.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		r.mu.Lock()
		r.data = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite takes txMu for a write made outside a transaction. The returned func releases it.
func (r *InMemorySequencingRepository) lockWrite(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	r.txMu.Lock()
	return r.txMu.Unlock
}

// Close releases resources used by the repository.
// As an in-memory repository, it holds no external resources, so this method always returns nil.
func (r *InMemorySequencingRepository) Close() error {
	return nil
}

// Verify that InMemorySequencingRepository implements the repository.SequencingRepository interface.
var _ repository.SequencingRepository = (*InMemorySequencingRepository)(nil)
