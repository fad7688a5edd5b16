package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyPaid        = errors.New("payable entity is already paid")
	ErrUnsupportedGateway = errors.New("unsupported payment gateway")
	ErrIgnoredEvent       = errors.New("gateway event ignored")
	ErrSignature          = errors.New("callback signature verification failed")

	// Storage errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)

// GatewayError is returned for any provider-side or transport failure while
// talking to a payment gateway.
type GatewayError struct {
	Provider   string
	Op         string // initiate | confirm | callback
	StatusCode int    // HTTP status, 0 when the request never completed
	RawStatus  string // provider status / error code, if any
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed", e.Provider, e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.RawStatus != "" {
		fmt.Fprintf(&b, " [%s]", e.RawStatus)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth one more attempt:
// no response at all, throttling, or a provider 5xx.
func (e *GatewayError) Transient() bool {
	if errors.Is(e.Err, ErrSignature) {
		return false
	}
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// UnknownReferenceError means a callback or verify request named a reference
// the ledger has never recorded.
type UnknownReferenceError struct {
	Reference string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown transaction reference %q", e.Reference)
}

func (e *UnknownReferenceError) Is(target error) bool { return target == ErrNotFound }

// DuplicateTransitionError is raised when a transition is attempted on a
// transaction that already left the pending state. Callers treat it as a no-op.
type DuplicateTransitionError struct {
	Reference string
	Current   string
	Attempted string
}

func (e *DuplicateTransitionError) Error() string {
	return fmt.Sprintf("transaction %s already %s; refusing transition to %s", e.Reference, e.Current, e.Attempted)
}

// ValidationError describes one malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

// ValidationErrors groups several field failures.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Field+" "+e.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrInvalidArgument }

// IsDuplicateTransition reports whether err is (or wraps) a DuplicateTransitionError.
func IsDuplicateTransition(err error) bool {
	var d *DuplicateTransitionError
	return errors.As(err, &d)
}
