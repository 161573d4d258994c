package apperrors

import (
	"errors"
	"fmt"
)

// FatalSchemaError is a schema statement failure that is not an
// already-applied conflict. It aborts the remaining steps of the run.
type FatalSchemaError struct {
	Step      string
	Statement string
	Err       error
}

// Error implements the error interface.
func (e *FatalSchemaError) Error() string {
	return fmt.Sprintf("fatal schema error in step %q (statement: %s): %v", e.Step, e.Statement, e.Err)
}

// Unwrap returns the wrapped error.
func (e *FatalSchemaError) Unwrap() error {
	return e.Err
}

// NewFatalSchema wraps err as a FatalSchemaError for the given step and statement.
func NewFatalSchema(step, statement string, err error) error {
	return &FatalSchemaError{Step: step, Statement: statement, Err: err}
}

// ResourceError indicates a failure to acquire or release the store connection.
type ResourceError struct {
	Op     string // "open" or "close"
	Target string
	Err    error
}

// Error implements the error interface.
func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource error: %s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap returns the wrapped error.
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResource wraps err as a ResourceError, adding a message.
// It uses fmt.Errorf with %w to maintain the error chain.
func NewResource(op, target string, err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &ResourceError{Op: op, Target: target, Err: fmt.Errorf(format, allArgs...)}
}

// --- Standard Error Definitions ---

var (
	// ErrBenignSchemaConflict marks a schema object that already exists. It is
	// swallowed by the provisioner and only logged.
	ErrBenignSchemaConflict = errors.New("schema object already exists")
	// ErrInvalidPlan indicates a provisioning plan that cannot be executed as written.
	ErrInvalidPlan = errors.New("invalid provisioning plan")
	// ErrConfig indicates invalid or missing configuration.
	ErrConfig = errors.New("invalid configuration")
	// ErrDatabase indicates a general database interaction error.
	ErrDatabase = errors.New("database error")
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates failure during data validation.
	ErrValidation = errors.New("validation failed")
	// ErrNATS indicates a general NATS communication error.
	ErrNATS = errors.New("nats communication error")
	// ErrConfirmationRequired guards destructive operations.
	ErrConfirmationRequired = errors.New("destructive operation requires explicit confirmation")
)

// --- Helper functions for checking ---

// IsFatalSchemaError checks if the error is a FatalSchemaError or wraps one.
func IsFatalSchemaError(err error) bool {
	var target *FatalSchemaError
	return errors.As(err, &target)
}

// IsResourceError checks if the error is a ResourceError or wraps one.
func IsResourceError(err error) bool {
	var target *ResourceError
	return errors.As(err, &target)
}

// IsBenignSchemaConflict checks if the error is or wraps ErrBenignSchemaConflict.
func IsBenignSchemaConflict(err error) bool {
	return errors.Is(err, ErrBenignSchemaConflict)
}

// IsInvalidPlanError checks if the error is or wraps ErrInvalidPlan.
func IsInvalidPlanError(err error) bool {
	return errors.Is(err, ErrInvalidPlan)
}

// IsConfigError checks if the error is or wraps ErrConfig.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsDatabaseError checks if the error is or wraps ErrDatabase.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsNotFoundError checks if the error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if the error is or wraps ErrValidation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
