// Package errors defines the error taxonomy every component reports
// through: a tagged AppError plus the GetErrorCode/Fatal helpers that
// classify a failure by its code.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the state-group recompression pipeline.
const (
	CodeUnknown          = "UNKNOWN_ERROR"
	CodeConfigError      = "CONFIG_ERROR"
	CodeConnectError     = "CONNECT_ERROR"
	CodeSchemaCorruption = "SCHEMA_CORRUPTION"
	CodeLoadError        = "LOAD_ERROR"
	CodeWriteError       = "WRITE_ERROR"
	CodeGrowthRejection  = "GROWTH_REJECTION"
	CodeNotFound         = "NOT_FOUND"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GetErrorCode extracts the error code from an error, or CodeUnknown if
// err is nil or not an *AppError.
//
// This pipeline dispatches on code rather than on sentinel error values:
// a chunk failure only ever needs to answer "does this code halt the
// run" (see Fatal), never "is this exactly ErrConnectError", so there
// are no exported sentinel vars or Is* predicates here to keep in sync
// with the code list above.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// Fatal reports whether an error code marks an invocation-wide failure
// (bad configuration or no connection) rather than one scoped to a single
// room.
//
// CodeGrowthRejection never reaches here: a rejected chunk is reported
// in-band as ChunkStats.Committed == false, not as a returned error.
func Fatal(code string) bool {
	switch code {
	case CodeConfigError, CodeConnectError:
		return true
	default:
		return false
	}
}
