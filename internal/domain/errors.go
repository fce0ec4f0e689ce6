package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrRateLimited         = errors.New("rate limited")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountInactive     = errors.New("account inactive")
)

// CustomerError is a fault safe to surface verbatim to the caller.
type CustomerError struct {
	Status  int
	Message string
}

func (e *CustomerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func NewCustomerError(status int, format string, args ...any) *CustomerError {
	return &CustomerError{
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	}
}

// SystemError is an internal fault. The customer only ever sees a generic
// message; the wrapped cause stays in logs.
type SystemError struct {
	Op    string
	Cause error
}

func (e *SystemError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("system error: %s", e.Op)
	}
	return fmt.Sprintf("system error: %s: %v", e.Op, e.Cause)
}

func (e *SystemError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewSystemError(op string, cause error) *SystemError {
	return &SystemError{Op: op, Cause: cause}
}
