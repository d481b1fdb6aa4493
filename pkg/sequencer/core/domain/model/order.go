package model

// OperationOrderUpdate requests a new position for an operation within its job.
// Order may be fractional; positions are normalized to 1..n when applied.
type OperationOrderUpdate struct {
	ID        string
	Order     float64
	UpdatedBy string
}

// StepOrderUpdate requests a new position for a step within its operation.
type StepOrderUpdate struct {
	ID        string
	SortOrder float64
	UpdatedBy string
}

// ItemResult is the outcome of one tuple of an order batch.
// Order is the normalized position the item ended up at, or 0 when it was not applied.
type ItemResult struct {
	ID    string
	Order int
	Err   error
}

// Applied reports whether the item was persisted.
func (r ItemResult) Applied() bool {
	return r.Err == nil
}

// Actor identifies the tenant and user on whose behalf a request runs.
type Actor struct {
	CompanyID string
	UserID    string
}
