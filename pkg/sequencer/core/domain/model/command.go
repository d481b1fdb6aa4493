package model

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// OperationCommand is a single-field mutation of an operation.
// The set of variants is closed: only types in this package implement it.
type OperationCommand interface {
	// Name returns the field name the command mutates.
	Name() string
	// Validate checks the payload.
	Validate() error
	// Apply writes the payload onto op.
	Apply(op *Operation)
	// AffectsGraph reports whether the dependency graph must be recalculated afterwards.
	AffectsGraph() bool
	// AffectsRequirements reports whether requirements must be propagated afterwards.
	AffectsRequirements() bool

	sealed()
}

// SetDescription changes the operation description.
type SetDescription struct{ Description string }

// SetWorkCenter assigns the operation to a work center. An empty ID unassigns it.
type SetWorkCenter struct{ WorkCenterID string }

// SetOperationOrder switches the operation between serial and parallel execution.
type SetOperationOrder struct{ Order OperationOrder }

// SetTiming replaces the setup, labor and machine hours.
type SetTiming struct {
	SetupTime   decimal.Decimal
	LaborTime   decimal.Decimal
	MachineTime decimal.Decimal
}

// SetScrapPercent changes the expected scrap rate.
type SetScrapPercent struct{ ScrapPercent decimal.Decimal }

// SetPriority changes the schedule priority.
type SetPriority struct{ Priority int }

// MoveOnScheduleBoard moves an operation to a work center column and priority slot.
type MoveOnScheduleBoard struct {
	WorkCenterID string
	Priority     int
}

var hundred = decimal.NewFromInt(100)

func (SetDescription) Name() string      { return "description" }
func (SetWorkCenter) Name() string       { return "workCenterId" }
func (SetOperationOrder) Name() string   { return "operationOrder" }
func (SetTiming) Name() string           { return "timing" }
func (SetScrapPercent) Name() string     { return "scrapPercent" }
func (SetPriority) Name() string         { return "priority" }
func (MoveOnScheduleBoard) Name() string { return "schedule" }

func (c SetDescription) Validate() error {
	if c.Description == "" {
		return errors.New("description is required")
	}
	return nil
}

func (SetWorkCenter) Validate() error { return nil }

func (c SetOperationOrder) Validate() error {
	if !c.Order.Valid() {
		return fmt.Errorf("unknown operation order %q", c.Order)
	}
	return nil
}

func (c SetTiming) Validate() error {
	if c.SetupTime.IsNegative() || c.LaborTime.IsNegative() || c.MachineTime.IsNegative() {
		return errors.New("times must not be negative")
	}
	return nil
}

func (c SetScrapPercent) Validate() error {
	if c.ScrapPercent.IsNegative() || c.ScrapPercent.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("scrap percent %s must be in [0, 100)", c.ScrapPercent)
	}
	return nil
}

func (c SetPriority) Validate() error {
	if c.Priority < 0 {
		return errors.New("priority must not be negative")
	}
	return nil
}

func (c MoveOnScheduleBoard) Validate() error {
	if c.WorkCenterID == "" {
		return errors.New("work center is required")
	}
	if c.Priority < 0 {
		return errors.New("priority must not be negative")
	}
	return nil
}

func (c SetDescription) Apply(op *Operation)    { op.Description = c.Description }
func (c SetWorkCenter) Apply(op *Operation)     { op.WorkCenterID = c.WorkCenterID }
func (c SetOperationOrder) Apply(op *Operation) { op.OperationOrder = c.Order }
func (c SetScrapPercent) Apply(op *Operation)   { op.ScrapPercent = c.ScrapPercent }
func (c SetPriority) Apply(op *Operation)       { op.Priority = c.Priority }

func (c SetTiming) Apply(op *Operation) {
	op.SetupTime = c.SetupTime
	op.LaborTime = c.LaborTime
	op.MachineTime = c.MachineTime
}

func (c MoveOnScheduleBoard) Apply(op *Operation) {
	op.WorkCenterID = c.WorkCenterID
	op.Priority = c.Priority
}

// Work center adjacency and stage boundaries feed the graph.
func (SetDescription) AffectsGraph() bool      { return false }
func (SetWorkCenter) AffectsGraph() bool       { return true }
func (SetOperationOrder) AffectsGraph() bool   { return true }
func (SetTiming) AffectsGraph() bool           { return false }
func (SetScrapPercent) AffectsGraph() bool     { return false }
func (SetPriority) AffectsGraph() bool         { return false }
func (MoveOnScheduleBoard) AffectsGraph() bool { return true }

func (SetDescription) AffectsRequirements() bool      { return false }
func (SetWorkCenter) AffectsRequirements() bool       { return false }
func (SetOperationOrder) AffectsRequirements() bool   { return false }
func (SetTiming) AffectsRequirements() bool           { return true }
func (SetScrapPercent) AffectsRequirements() bool     { return true }
func (SetPriority) AffectsRequirements() bool         { return false }
func (MoveOnScheduleBoard) AffectsRequirements() bool { return false }

func (SetDescription) sealed()      {}
func (SetWorkCenter) sealed()       {}
func (SetOperationOrder) sealed()   {}
func (SetTiming) sealed()           {}
func (SetScrapPercent) sealed()     {}
func (SetPriority) sealed()         {}
func (MoveOnScheduleBoard) sealed() {}

// ParseOperationCommand turns a field/value pair from a form into a command.
// Timing fields update one of the three times; the others are taken from current.
func ParseOperationCommand(field, value string, current *Operation) (OperationCommand, error) {
	var cmd OperationCommand
	switch field {
	case "description":
		cmd = SetDescription{Description: value}
	case "workCenterId":
		cmd = SetWorkCenter{WorkCenterID: value}
	case "operationOrder":
		cmd = SetOperationOrder{Order: OperationOrder(value)}
	case "setupTime", "laborTime", "machineTime":
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		timing := SetTiming{}
		if current != nil {
			timing = SetTiming{SetupTime: current.SetupTime, LaborTime: current.LaborTime, MachineTime: current.MachineTime}
		}
		switch field {
		case "setupTime":
			timing.SetupTime = d
		case "laborTime":
			timing.LaborTime = d
		default:
			timing.MachineTime = d
		}
		cmd = timing
	case "scrapPercent":
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		cmd = SetScrapPercent{ScrapPercent: d}
	case "priority":
		p, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		cmd = SetPriority{Priority: p}
	default:
		return nil, fmt.Errorf("unsupported field %q", field)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}
