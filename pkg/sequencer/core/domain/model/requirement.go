package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationRequirement holds the derived material and time figures of one operation.
// Accumulated values include every distinct ancestor operation within the make method.
type OperationRequirement struct {
	OperationID                 string
	JobMakeMethodID             string
	JobID                       string
	CompanyID                   string
	InputQuantity               decimal.Decimal
	OutputQuantity              decimal.Decimal
	MaterialQuantity            decimal.Decimal
	AccumulatedMaterialQuantity decimal.Decimal
	EstimatedHours              decimal.Decimal
	AccumulatedHours            decimal.Decimal
	CalculatedAt                time.Time
}

// AuditAction names an action performed under a graph-recompute capability.
type AuditAction string

const (
	AuditActionRecalculateDependencies AuditAction = "recalculate-dependencies"
	AuditActionPropagateRequirements   AuditAction = "propagate-requirements"
)

// AuditOutcome is the result of an audited action.
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "success"
	AuditOutcomeFailure AuditOutcome = "failure"
)

// GraphRecomputeAudit records one use of a graph-recompute capability.
type GraphRecomputeAudit struct {
	ID           string
	CapabilityID string
	CompanyID    string
	JobID        string
	ActingUserID string
	Action       AuditAction
	Outcome      AuditOutcome
	Detail       string
	CreatedAt    time.Time
}
