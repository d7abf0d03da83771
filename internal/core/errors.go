package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("core: record not found")
	ErrInvalidTransition = errors.New("core: invalid status transition")
	ErrGateNotSatisfied  = errors.New("core: scan confirmation has not been received")
	ErrDuplicateRequest  = errors.New("core: request id has already been used")
)

// ValidationError is returned for missing or malformed input, before any
// write has been attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// InsufficientStockError reports a quantity shortfall so the caller can show
// the customer how much is actually available.
type InsufficientStockError struct {
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available=%d requested=%d", e.Available, e.Requested)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
