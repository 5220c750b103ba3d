package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the entity is absent or not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates a status change not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAmountMismatch indicates a payment that does not reconcile with the quotation total.
	ErrAmountMismatch = errors.New("amount mismatch")
	// ErrConcurrencyConflict indicates the quotation was already consumed by another order.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrPersistence indicates the entity store failed.
	ErrPersistence = errors.New("persistence failure")
	// ErrDependency indicates an outbound provider (mail, sms, push, gateway) failed.
	ErrDependency = errors.New("dependency failure")
	// ErrUnauthenticated indicates a missing or expired credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the caller's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
)

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Persistence wraps a storage error unless it already carries a known sentinel.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
