package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for planning engine errors.
type ErrorCode string

// Input validation error codes
const (
	VALIDATION_FAILED  ErrorCode = "VALIDATION_FAILED"
	EMPTY_ITERATIONS   ErrorCode = "EMPTY_ITERATIONS"
	NO_TEAMS           ErrorCode = "NO_TEAMS"
	NEGATIVE_ESTIMATE  ErrorCode = "NEGATIVE_ESTIMATE"
	MISSING_WORK_ITEM  ErrorCode = "MISSING_WORK_ITEM"
	DUPLICATE_ITEM_KEY ErrorCode = "DUPLICATE_ITEM_KEY"
)

// Dependency analysis error codes
const (
	CIRCULAR_DEPENDENCY ErrorCode = "CIRCULAR_DEPENDENCY"
	UNKNOWN_EDGE_TARGET ErrorCode = "UNKNOWN_EDGE_TARGET"
)

// Decomposition error codes
const (
	DECOMPOSITION_FAILED     ErrorCode = "DECOMPOSITION_FAILED"
	INSUFFICIENT_CRITERIA    ErrorCode = "INSUFFICIENT_CRITERIA"
	POINTS_CONSERVATION_LOST ErrorCode = "POINTS_CONSERVATION_LOST"
)

// Scoring error codes
const (
	SCORING_FAILED     ErrorCode = "SCORING_FAILED"
	INVALID_JOB_SIZE   ErrorCode = "INVALID_JOB_SIZE"
	SCORE_OUT_OF_RANGE ErrorCode = "SCORE_OUT_OF_RANGE"
)

// Plan assembly error codes
const (
	INVALID_PLAN_STATUS ErrorCode = "INVALID_PLAN_STATUS"
)

// Configuration and backlog loading error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
	BACKLOG_PARSE_FAILED     ErrorCode = "BACKLOG_PARSE_FAILED"
	BACKLOG_INVALID          ErrorCode = "BACKLOG_INVALID"
)

// EngineError represents a structured error with error code, message, and optional cause.
// Fatal distinguishes plan-level errors that abort a planning run from stage-local
// errors that are collected per item and attached to the relevant result list.
type EngineError struct {
	Code    ErrorCode
	Message string
	Fatal   bool
	ItemKey string
	Cause   error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is an EngineError with the same Code.
func (e *EngineError) Is(target error) bool {
	var engineErr *EngineError
	if errors.As(target, &engineErr) {
		return e.Code == engineErr.Code
	}
	return false
}

// WithItem attaches the work-item key the error relates to and returns the error.
func (e *EngineError) WithItem(key string) *EngineError {
	e.ItemKey = key
	return e
}

// NewError creates a new stage-local (non-fatal) EngineError with the given code and message.
func NewError(code ErrorCode, message string) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Fatal:   false,
	}
}

// NewFatalError creates a new plan-level EngineError that aborts the planning run.
func NewFatalError(code ErrorCode, message string) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Fatal:   true,
	}
}

// WrapError creates a new stage-local EngineError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Fatal:   false,
		Cause:   cause,
	}
}

// WrapFatalError creates a new plan-level EngineError that wraps an existing error.
func WrapFatalError(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Fatal:   true,
		Cause:   cause,
	}
}

// IsFatal reports whether err is an EngineError carrying the Fatal flag.
// Non-EngineError values are treated as fatal, matching the propagation policy
// that only explicitly collected stage errors continue a run.
func IsFatal(err error) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Fatal
	}
	return err != nil
}
