package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OperationOrder states how an operation relates to the one before it in its method.
type OperationOrder string

const (
	// OperationOrderAfterPrevious starts a new stage after the previous operation.
	OperationOrderAfterPrevious OperationOrder = "After Previous"
	// OperationOrderWithPrevious runs in parallel with the previous operation.
	OperationOrderWithPrevious OperationOrder = "With Previous"
)

// Valid reports whether o is a known operation order.
func (o OperationOrder) Valid() bool {
	return o == OperationOrderAfterPrevious || o == OperationOrderWithPrevious
}

// ParseOperationOrder parses s into an OperationOrder. An empty string means AfterPrevious.
func ParseOperationOrder(s string) (OperationOrder, error) {
	if s == "" {
		return OperationOrderAfterPrevious, nil
	}
	o := OperationOrder(s)
	if !o.Valid() {
		return "", fmt.Errorf("unknown operation order %q", s)
	}
	return o, nil
}

// Operation is a unit of manufacturing work within a job.
// DependsOn is derived by the dependency recalculator and lists direct predecessors only.
type Operation struct {
	ID              string
	JobID           string
	JobMakeMethodID string
	CompanyID       string
	Description     string
	SortOrder       int
	WorkCenterID    string
	OperationOrder  OperationOrder
	SetupTime       decimal.Decimal // hours per run
	LaborTime       decimal.Decimal // hours per unit
	MachineTime     decimal.Decimal // hours per unit
	ScrapPercent    decimal.Decimal
	Priority        int
	DependsOn       []string
	Audit
}

// StepType is the kind of an operation step.
type StepType string

const (
	StepTypeTask        StepType = "Task"
	StepTypeValue       StepType = "Value"
	StepTypeMeasurement StepType = "Measurement"
	StepTypeCheckbox    StepType = "Checkbox"
	StepTypeTimestamp   StepType = "Timestamp"
)

// OperationStep is a sub-task of an operation, ordered within its operation.
type OperationStep struct {
	ID          string
	OperationID string
	CompanyID   string
	Name        string
	Description string
	Type        StepType
	SortOrder   int
	Audit
}

// OperationParameter is a key/value setting attached to an operation.
type OperationParameter struct {
	ID          string
	OperationID string
	CompanyID   string
	Key         string
	Value       string
	Audit
}

// OperationTool is a tool required by an operation.
type OperationTool struct {
	ID          string
	OperationID string
	CompanyID   string
	ToolID      string
	Quantity    decimal.Decimal
	Audit
}

// MaintenanceDispatchItem is a spare part consumed by a maintenance dispatch.
// It may reference the operation it was issued against.
type MaintenanceDispatchItem struct {
	ID                    string
	MaintenanceDispatchID string
	OperationID           string
	CompanyID             string
	ItemID                string
	Quantity              decimal.Decimal
	Audit
}
