// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrBoundaryFault     = errors.New("boundary fault")
	ErrAllocationFailure = errors.New("allocation failure")
)

// Negative result codes returned across the call boundary.
const (
	CodeInvalidArgument   int64 = -22
	CodeBoundaryFault     int64 = -14
	CodeAllocationFailure int64 = -12
	CodeCanceled          int64 = -125
	CodeUnknown           int64 = -5
)

// OperationError represents a failed buffer operation.
type OperationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *OperationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Reason)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// InvalidArgument returns an OperationError wrapping ErrInvalidArgument.
func InvalidArgument(op, format string, args ...any) error {
	return &OperationError{Op: op, Reason: fmt.Sprintf(format, args...), Err: ErrInvalidArgument}
}

// BoundaryFault returns an OperationError wrapping ErrBoundaryFault and cause.
func BoundaryFault(op string, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return &OperationError{Op: op, Reason: reason, Err: ErrBoundaryFault}
}

// Code maps err to the signed result reported across the call boundary.
// A nil error maps to 0.
func Code(err error) int64 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrBoundaryFault):
		return CodeBoundaryFault
	case errors.Is(err, ErrAllocationFailure):
		return CodeAllocationFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeUnknown
	}
}

// FromCode converts a negative result back into an error. Non-negative
// codes yield nil.
func FromCode(code int64) error {
	switch {
	case code >= 0:
		return nil
	case code == CodeInvalidArgument:
		return ErrInvalidArgument
	case code == CodeBoundaryFault:
		return ErrBoundaryFault
	case code == CodeAllocationFailure:
		return ErrAllocationFailure
	case code == CodeCanceled:
		return context.Canceled
	default:
		return fmt.Errorf("operation failed with code %d", code)
	}
}
