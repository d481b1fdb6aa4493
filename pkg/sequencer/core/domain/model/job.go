// Package model defines the domain entities of the sequencing service.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audit holds the creation and last-update stamps shared by every persisted entity.
type Audit struct {
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt *time.Time
}

// Touch records an update by userID at now.
func (a *Audit) Touch(userID string, now time.Time) {
	a.UpdatedBy = userID
	t := now
	a.UpdatedAt = &t
}

// Job is a production job. It owns operations and one or more make methods.
type Job struct {
	ID        string
	JobID     string // human readable job number
	CompanyID string
	ItemID    string
	Quantity  decimal.Decimal
	Audit
}

// MethodType describes how a material is sourced.
type MethodType string

const (
	MethodTypeBuy  MethodType = "Buy"
	MethodTypePick MethodType = "Pick"
	MethodTypeMake MethodType = "Make"
)

// JobMakeMethod is the bill-of-process for producing one item within a job.
// The root method has no ParentMaterialID. A sub-assembly method is attached to
// a Make material of its parent method.
type JobMakeMethod struct {
	ID               string
	JobID            string
	CompanyID        string
	ItemID           string
	ParentMaterialID string
	Quantity         decimal.Decimal
	Audit
}

// IsRoot reports whether m is the job's root method.
func (m *JobMakeMethod) IsRoot() bool {
	return m.ParentMaterialID == ""
}

// JobMaterial is a tracked input consumed by a make method.
// A material without JobOperationID is consumed at the method's first operation.
type JobMaterial struct {
	ID                string
	JobMakeMethodID   string
	JobOperationID    string
	CompanyID         string
	ItemID            string
	MethodType        MethodType
	QuantityPerParent decimal.Decimal
	EstimatedQuantity decimal.Decimal
	Audit
}
