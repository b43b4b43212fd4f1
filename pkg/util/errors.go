// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for precondition failures
var (
	ErrNotConnected       = errors.New("device not connected")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrPreconditionFailed = errors.New("precondition not met")
	ErrValidationFailed   = errors.New("validation failed")

	// Raised before any route state is written; never retried.
	ErrInsufficientTopology = errors.New("insufficient topology")
	ErrNoEligiblePeers      = errors.New("no eligible BGP peers")
	ErrUnsupportedTopology  = errors.New("unsupported topology")

	ErrConvergenceTimeout = errors.New("convergence timeout")
	ErrAssertionMismatch  = errors.New("assertion mismatch")

	ErrNoRouteCounter = errors.New("no route flow counter")
)

// PreconditionError represents a failed precondition check with context
type PreconditionError struct {
	Operation    string
	Resource     string
	Precondition string
	Details      string
	// Kind is the sentinel this failure classifies as (ErrInsufficientTopology, ...).
	// Defaults to ErrPreconditionFailed.
	Kind error
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition failed for %s on %s: %s", e.Operation, e.Resource, e.Precondition)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrPreconditionFailed}
	}
	return []error{e.Kind, ErrPreconditionFailed}
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(operation, resource, precondition, details string) *PreconditionError {
	return &PreconditionError{
		Operation:    operation,
		Resource:     resource,
		Precondition: precondition,
		Details:      details,
	}
}

// NewKindedPreconditionError creates a precondition error that also matches kind
// under errors.Is.
func NewKindedPreconditionError(kind error, operation, resource, details string) *PreconditionError {
	return &PreconditionError{
		Operation:    operation,
		Resource:     resource,
		Precondition: kind.Error(),
		Details:      details,
		Kind:         kind,
	}
}

// ConvergenceTimeoutError is returned when a bounded poll exhausted its budget
// before the predicate held.
type ConvergenceTimeoutError struct {
	Phase        string
	Prefix       string
	Expected     string
	LastObserved string
	Elapsed      time.Duration
	Budget       time.Duration
}

func (e *ConvergenceTimeoutError) Error() string {
	msg := fmt.Sprintf("%s: %s did not converge to %s (elapsed %s, budget %s)",
		e.Phase, e.Prefix, e.Expected, e.Elapsed.Round(time.Second), e.Budget)
	if e.LastObserved != "" {
		msg += ": last observed: " + e.LastObserved
	}
	return msg
}

func (e *ConvergenceTimeoutError) Unwrap() error {
	return ErrConvergenceTimeout
}

// AssertionMismatchError is returned when a single-shot check failed on its
// first evaluation.
type AssertionMismatchError struct {
	Phase    string
	Prefix   string
	Expected string
	Observed string
}

func (e *AssertionMismatchError) Error() string {
	msg := fmt.Sprintf("%s: %s: expected %s", e.Phase, e.Prefix, e.Expected)
	if e.Observed != "" {
		msg += "\nreal:\n" + e.Observed
	}
	return msg
}

func (e *AssertionMismatchError) Unwrap() error {
	return ErrAssertionMismatch
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
