package docs

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service wraps exactly one of these.
var (
	ErrValidation      = errors.New("docs: validation failed")
	ErrNotFound        = errors.New("docs: not found")
	ErrUnauthorized    = errors.New("docs: caller identity required")
	ErrForbidden       = errors.New("docs: forbidden")
	ErrInvalidState    = errors.New("docs: invalid state")
	ErrAlreadyResolved = errors.New("docs: suggestion already resolved")
	ErrConflict        = errors.New("docs: conflict")
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

const (
	KindValidation      = "validation"
	KindNotFound        = "not_found"
	KindUnauthorized    = "unauthorized"
	KindForbidden       = "forbidden"
	KindInvalidState    = "invalid_state"
	KindAlreadyResolved = "already_resolved"
	KindConflict        = "conflict"
	KindInternal        = "internal"
)

var kindsBySentinel = []struct {
	sentinel error
	kind     string
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
	{ErrInvalidState, KindInvalidState},
	{ErrAlreadyResolved, KindAlreadyResolved},
	{ErrConflict, KindConflict},
}

// Kind classifies err into one of the Kind* constants.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, candidate := range kindsBySentinel {
		if errors.Is(err, candidate.sentinel) {
			return candidate.kind
		}
	}
	return KindInternal
}

// ServiceError carries a stable machine-readable code of the form
// "<operation>.<reason>".
type ServiceError struct {
	operation string
	reason    string
	err       error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.Code()
	}
	return fmt.Sprintf("%s: %v", e.Code(), e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the "<operation>.<reason>" identifier.
func (e *ServiceError) Code() string {
	return fmt.Sprintf("%s.%s", e.operation, e.reason)
}

// Reason returns the reason segment of the code.
func (e *ServiceError) Reason() string {
	return e.reason
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{operation: operation, reason: reason, err: cause}
}
