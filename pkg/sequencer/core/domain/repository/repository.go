// Package repository defines the persistence ports of the sequencing service.
package repository

import (
	"context"
	"errors"
)

var (
	// ErrJobNotFound is returned when a job does not exist within the company.
	ErrJobNotFound = errors.New("job not found")
	// ErrMakeMethodNotFound is returned when a make method does not exist within the company.
	ErrMakeMethodNotFound = errors.New("make method not found")
	// ErrMaterialNotFound is returned when a job material does not exist within the company.
	ErrMaterialNotFound = errors.New("job material not found")
	// ErrOperationNotFound is returned when an operation does not exist within the company.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrStepNotFound is returned when an operation step does not exist.
	ErrStepNotFound = errors.New("operation step not found")
	// ErrAttachmentNotFound is returned when an operation parameter or tool does not exist.
	ErrAttachmentNotFound = errors.New("operation attachment not found")
)

// IsNotFound reports whether err wraps one of the not-found sentinels of this package.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrMakeMethodNotFound) ||
		errors.Is(err, ErrMaterialNotFound) ||
		errors.Is(err, ErrOperationNotFound) ||
		errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, ErrAttachmentNotFound)
}

// Transactional runs a unit of work atomically.
// Repository calls made with the context passed to fn join the transaction.
type Transactional interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SequencingRepository persists jobs, their operations and everything derived from them.
// It embeds one interface per aggregate.
type SequencingRepository interface {
	Job
	MakeMethod
	Material
	Operation
	Step
	Attachment
	Requirement
	Audit
	Transactional

	// Close releases resources (such as database connections) used by the repository.
	Close() error
}
