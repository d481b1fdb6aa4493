// Package exception provides the error taxonomy of the sequencing service.
// Errors are classified by kind so that the transport layer can map them onto
// response codes without inspecting messages.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind classifies a SequencerError.
type Kind int

const (
	// KindInternal is an unexpected failure (storage, encoding, programming error).
	KindInternal Kind = iota
	// KindValidation marks malformed input. Callers may fix the input and retry.
	KindValidation
	// KindNotFound marks a reference to an entity that does not exist in the tenant.
	KindNotFound
	// KindPermission marks a failed permission gate or a rejected capability.
	KindPermission
	// KindPartialBatch marks a batch in which at least one item failed while others were applied.
	KindPartialBatch
	// KindRecalculation marks a failed dependency or requirement recomputation.
	// The stored graph may be stale until the job is recalculated again.
	KindRecalculation
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindPartialBatch:
		return "partial_batch"
	case KindRecalculation:
		return "recalculation"
	default:
		return "internal"
	}
}

// SequencerError is the error type returned across package boundaries.
// It holds the module where the error occurred, a message, the wrapped original error
// and its kind.
type SequencerError struct {
	// Module indicates where the error occurred (e.g., "orderstore", "dependency", "requirement").
	Module string
	// Kind classifies the error.
	Kind Kind
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewSequencerError creates a new SequencerError instance.
func NewSequencerError(module string, kind Kind, message string, originalErr error) *SequencerError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &SequencerError{
		Module:      module,
		Kind:        kind,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// NewSequencerErrorf creates a new SequencerError using a format string.
// If the last argument is an error, it is wrapped as the original error and not used for formatting.
func NewSequencerErrorf(module string, kind Kind, format string, a ...interface{}) *SequencerError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return NewSequencerError(module, kind, fmt.Sprintf(format, args...), originalErr)
}

// NewValidationError creates a validation error.
func NewValidationError(module, message string, originalErr error) *SequencerError {
	return NewSequencerError(module, KindValidation, message, originalErr)
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(module, message string, originalErr error) *SequencerError {
	return NewSequencerError(module, KindNotFound, message, originalErr)
}

// NewPermissionError creates a permission error.
func NewPermissionError(module, message string, originalErr error) *SequencerError {
	return NewSequencerError(module, KindPermission, message, originalErr)
}

// NewPartialBatchError creates an error reporting that some items of a batch failed.
// originalErr is typically a *multierror.Error holding one entry per failed item.
func NewPartialBatchError(module, message string, originalErr error) *SequencerError {
	return NewSequencerError(module, KindPartialBatch, message, originalErr)
}

// NewRecalculationError creates an error reporting a failed recomputation.
func NewRecalculationError(module, message string, originalErr error) *SequencerError {
	return NewSequencerError(module, KindRecalculation, message, originalErr)
}

// NewInternalError creates an internal error.
func NewInternalError(module, message string, originalErr error) *SequencerError {
	return NewSequencerError(module, KindInternal, message, originalErr)
}

// Error implements the error interface.
func (e *SequencerError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *SequencerError) Unwrap() error {
	return e.OriginalErr
}

// Is reports whether target is one of the kind sentinels matching this error's kind.
func (e *SequencerError) Is(target error) bool {
	k, ok := sentinelKinds[target]
	return ok && k == e.Kind
}

// Kind sentinels for use with errors.Is.
var (
	ErrValidation    = errors.New("validation")
	ErrNotFound      = errors.New("not found")
	ErrPermission    = errors.New("permission denied")
	ErrPartialBatch  = errors.New("partial batch failure")
	ErrRecalculation = errors.New("recalculation failed")
)

var sentinelKinds = map[error]Kind{
	ErrValidation:    KindValidation,
	ErrNotFound:      KindNotFound,
	ErrPermission:    KindPermission,
	ErrPartialBatch:  KindPartialBatch,
	ErrRecalculation: KindRecalculation,
}

// KindOf returns the kind of the outermost SequencerError in err's chain.
// Errors that are not SequencerErrors are internal, except for wrapped kind sentinels.
func KindOf(err error) Kind {
	var se *SequencerError
	if errors.As(err, &se) {
		return se.Kind
	}
	for sentinel, kind := range sentinelKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// IsSequencerError determines if the given error is a *SequencerError.
func IsSequencerError(err error) bool {
	var se *SequencerError
	return errors.As(err, &se)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }

// IsPermission reports whether err is a permission error.
func IsPermission(err error) bool { return err != nil && KindOf(err) == KindPermission }

// IsPartialBatch reports whether err is a partial batch error.
func IsPartialBatch(err error) bool { return err != nil && KindOf(err) == KindPartialBatch }

// IsRecalculation reports whether err is a recalculation error.
func IsRecalculation(err error) bool { return err != nil && KindOf(err) == KindRecalculation }

// ExtractErrorMessage extracts the error message string from an error.
// For SequencerError, it returns the cleaner Message field.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *SequencerError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
