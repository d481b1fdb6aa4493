package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleRow is one operation of a job as it appears in a schedule export.
type ScheduleRow struct {
	CompanyID                   string
	JobID                       string
	OperationID                 string
	JobMakeMethodID             string
	Description                 string
	SortOrder                   int
	WorkCenterID                string
	OperationOrder              OperationOrder
	Priority                    int
	DependsOn                   []string
	InputQuantity               decimal.Decimal
	OutputQuantity              decimal.Decimal
	MaterialQuantity            decimal.Decimal
	AccumulatedMaterialQuantity decimal.Decimal
	EstimatedHours              decimal.Decimal
	AccumulatedHours            decimal.Decimal
	// CalculatedAt is nil when no requirement has been derived for the operation yet.
	CalculatedAt *time.Time
}
