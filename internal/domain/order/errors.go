package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no order has the requested number.
	ErrNotFound = errors.New("order not found")
	// ErrNumberTaken is returned by a Store when the order number is in use.
	ErrNumberTaken = errors.New("order number already taken")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string
	Reason string
}

func (f FieldError) String() string {
	return f.Field + " " + f.Reason
}

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "invalid order: " + strings.Join(parts, "; ")
}

// MinimumOrderError indicates the order holds fewer units than required.
type MinimumOrderError struct {
	Minimum  int
	Quantity int
}

func (e *MinimumOrderError) Error() string {
	return fmt.Sprintf("minimum order not met: at least %d macarons required, got %d", e.Minimum, e.Quantity)
}

// PersistenceError wraps an unexpected order store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persist order: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// DispatchError reports a failed confirmation send. It is only ever logged.
type DispatchError struct {
	OrderNumber string
	Channel     string
	Err         error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s confirmation for order %s: %v", e.Channel, e.OrderNumber, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsUserError reports whether err is caused by input the caller can fix.
func IsUserError(err error) bool {
	var (
		verr *ValidationError
		merr *MinimumOrderError
	)
	return errors.As(err, &verr) || errors.As(err, &merr)
}
