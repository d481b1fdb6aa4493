package inmemory

import (
	"context"
	"fmt"
	"sort"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
)

// InsertParameter persists a new operation parameter.
func (r *InMemorySequencingRepository) InsertParameter(ctx context.Context, p *model.OperationParameter) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data.parameters[p.ID]; exists {
		return fmt.Errorf("operation parameter with ID %s already exists", p.ID)
	}
	r.data.parameters[p.ID] = *p
	return nil
}

// ListParametersByOperation returns the parameters of an operation ordered by key.
func (r *InMemorySequencingRepository) ListParametersByOperation(ctx context.Context, operationID string) ([]*model.OperationParameter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var params []*model.OperationParameter
	for _, p := range r.data.parameters {
		if p.OperationID == operationID {
			p := p
			params = append(params, &p)
		}
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i].Key != params[j].Key {
			return params[i].Key < params[j].Key
		}
		return params[i].ID < params[j].ID
	})
	return params, nil
}

// DeleteParameter removes an operation parameter.
func (r *InMemorySequencingRepository) DeleteParameter(ctx context.Context, companyID, id string) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.data.parameters[id]
	if !ok || p.CompanyID != companyID {
		return fmt.Errorf("%w: parameter %s", repository.ErrAttachmentNotFound, id)
	}
	delete(r.data.parameters, id)
	return nil
}

// DeleteParametersByOperation removes every parameter of an operation.
func (r *InMemorySequencingRepository) DeleteParametersByOperation(ctx context.Context, operationID string) (int64, error) {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, p := range r.data.parameters {
		if p.OperationID == operationID {
			delete(r.data.parameters, id)
			n++
		}
	}
	return n, nil
}

// InsertTool persists a new operation tool.
func (r *InMemorySequencingRepository) InsertTool(ctx context.Context, t *model.OperationTool) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data.tools[t.ID]; exists {
		return fmt.Errorf("operation tool with ID %s already exists", t.ID)
	}
	r.data.tools[t.ID] = *t
	return nil
}

// ListToolsByOperation returns the tools of an operation ordered by tool ID.
func (r *InMemorySequencingRepository) ListToolsByOperation(ctx context.Context, operationID string) ([]*model.OperationTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tools []*model.OperationTool
	for _, t := range r.data.tools {
		if t.OperationID == operationID {
			t := t
			tools = append(tools, &t)
		}
	}
	sort.Slice(tools, func(i, j int) bool {
		if tools[i].ToolID != tools[j].ToolID {
			return tools[i].ToolID < tools[j].ToolID
		}
		return tools[i].ID < tools[j].ID
	})
	return tools, nil
}

// DeleteTool removes an operation tool.
func (r *InMemorySequencingRepository) DeleteTool(ctx context.Context, companyID, id string) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.data.tools[id]
	if !ok || t.CompanyID != companyID {
		return fmt.Errorf("%w: tool %s", repository.ErrAttachmentNotFound, id)
	}
	delete(r.data.tools, id)
	return nil
}

// DeleteToolsByOperation removes every tool of an operation.
func (r *InMemorySequencingRepository) DeleteToolsByOperation(ctx context.Context, operationID string) (int64, error) {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.data.tools {
		if t.OperationID == operationID {
			delete(r.data.tools, id)
			n++
		}
	}
	return n, nil
}

// SaveDispatchItem persists a maintenance dispatch item.
func (r *InMemorySequencingRepository) SaveDispatchItem(ctx context.Context, item *model.MaintenanceDispatchItem) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data.dispatchItems[item.ID] = *item
	return nil
}

// DetachDispatchItems clears the operation reference of maintenance dispatch items.
func (r *InMemorySequencingRepository) DetachDispatchItems(ctx context.Context, operationID string) (int64, error) {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, item := range r.data.dispatchItems {
		if item.OperationID == operationID {
			item.OperationID = ""
			r.data.dispatchItems[id] = item
			n++
		}
	}
	return n, nil
}

// DispatchItems returns a copy of every stored maintenance dispatch item.
func (r *InMemorySequencingRepository) DispatchItems() []model.MaintenanceDispatchItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.MaintenanceDispatchItem, 0, len(r.data.dispatchItems))
	for _, item := range r.data.dispatchItems {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
