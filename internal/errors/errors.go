// Package errors provides structured error types for LogWatch.
//
// Every failure the query engine can hit is described by a LogWatchError
// carrying a category, a stable code and the underlying cause. The server
// layer renders these into tool text results; none of them cross the MCP
// boundary as protocol errors.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeFile       ErrorType = "file"
	ErrorTypeExec       ErrorType = "exec"
	ErrorTypePermission ErrorType = "permission"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes
const (
	CodeInvalidSource    = "INVALID_SOURCE"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeArtifactAbsent   = "ARTIFACT_ABSENT"
	CodeExecutionFailure = "EXECUTION_FAILED"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeTimeout          = "TIMEOUT"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeUnknown          = "UNKNOWN_ERROR"
)

// LogWatchError is the base error type for all LogWatch errors
type LogWatchError struct {
	Type       ErrorType
	Code       string
	Message    string
	Underlying error
	Details    map[string]interface{}
	Timestamp  time.Time
}

// Error implements the error interface
func (e *LogWatchError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Type, e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *LogWatchError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target has the same type and code.
func (e *LogWatchError) Is(target error) bool {
	if t, ok := target.(*LogWatchError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithDetails adds details to the error
func (e *LogWatchError) WithDetails(key string, value interface{}) *LogWatchError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithOperation records the tool operation that produced the error.
func (e *LogWatchError) WithOperation(operation string) *LogWatchError {
	return e.WithDetails("operation", operation)
}

func newError(errorType ErrorType, code, message string, underlying error) *LogWatchError {
	return &LogWatchError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Underlying: underlying,
		Timestamp:  time.Now(),
	}
}

// ValidationError creates a validation error
func ValidationError(code, message string, underlying error) *LogWatchError {
	return newError(ErrorTypeValidation, code, message, underlying)
}

// FileError creates a file-related error
func FileError(code, message string, underlying error) *LogWatchError {
	return newError(ErrorTypeFile, code, message, underlying)
}

// ExecError creates an error for a failed filter command
func ExecError(code, message string, underlying error) *LogWatchError {
	return newError(ErrorTypeExec, code, message, underlying)
}

// PermissionError creates a permission error
func PermissionError(code, message string, underlying error) *LogWatchError {
	return newError(ErrorTypePermission, code, message, underlying)
}

// TimeoutError creates a timeout error
func TimeoutError(code, message string, underlying error) *LogWatchError {
	return newError(ErrorTypeTimeout, code, message, underlying)
}

// ConfigError creates a configuration error
func ConfigError(code, message string, underlying error) *LogWatchError {
	return newError(ErrorTypeConfig, code, message, underlying)
}

// InternalError creates an internal error
func InternalError(code, message string, underlying error) *LogWatchError {
	return newError(ErrorTypeInternal, code, message, underlying)
}

// InvalidSource reports an unrecognized source identifier. The message lists
// the valid identifiers so the caller can correct the request.
func InvalidSource(value string, valid []string) *LogWatchError {
	msg := fmt.Sprintf("Invalid source: %s. Valid sources: %s", value, strings.Join(valid, ", "))
	return ValidationError(CodeInvalidSource, msg, nil).
		WithDetails("value", value).
		WithDetails("valid", valid)
}

// InvalidArgument reports a malformed tool argument.
func InvalidArgument(format string, args ...interface{}) *LogWatchError {
	return ValidationError(CodeInvalidArgument, fmt.Sprintf(format, args...), nil)
}

// ArtifactAbsent reports a log file that does not exist yet.
func ArtifactAbsent(path string) *LogWatchError {
	return FileError(CodeArtifactAbsent, "Log file not found", nil).WithDetails("path", path)
}

// ExecutionFailure reports a filter that failed for a reason other than
// finding nothing.
func ExecutionFailure(message string, underlying error) *LogWatchError {
	return ExecError(CodeExecutionFailure, message, underlying)
}

// ClassifyError attempts to classify a standard Go error into a LogWatch error
func ClassifyError(err error) *LogWatchError {
	if err == nil {
		return nil
	}

	var lwErr *LogWatchError
	if stderrors.As(err, &lwErr) {
		return lwErr
	}

	var exitErr *exec.ExitError
	switch {
	case stderrors.Is(err, os.ErrNotExist):
		return FileError(CodeArtifactAbsent, "File not found", err)
	case stderrors.Is(err, os.ErrPermission):
		return PermissionError(CodePermissionDenied, "Permission denied", err)
	case stderrors.Is(err, context.DeadlineExceeded), os.IsTimeout(err):
		return TimeoutError(CodeTimeout, "Operation timeout", err)
	case stderrors.As(err, &exitErr), stderrors.Is(err, exec.ErrNotFound):
		return ExecError(CodeExecutionFailure, "Filter execution failed", err)
	default:
		return InternalError(CodeUnknown, "Unknown error", err)
	}
}

// WrapError wraps an existing error with additional context
func WrapError(err error, message string) *LogWatchError {
	if err == nil {
		return nil
	}

	classified := ClassifyError(err)
	wrapped := *classified
	wrapped.Message = message + ": " + classified.Message
	return &wrapped
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var lwErr *LogWatchError
	if stderrors.As(err, &lwErr) {
		return lwErr.Type == errorType
	}
	return false
}

// IsCode checks if an error has a specific code
func IsCode(err error, code string) bool {
	var lwErr *LogWatchError
	if stderrors.As(err, &lwErr) {
		return lwErr.Code == code
	}
	return false
}

// LogAttrs returns slog attributes for the error
func (e *LogWatchError) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("error_type", string(e.Type)),
		slog.String("error_code", e.Code),
		slog.String("error_message", e.Message),
	}

	if !e.Timestamp.IsZero() {
		attrs = append(attrs, slog.Time("error_timestamp", e.Timestamp))
	}

	if e.Underlying != nil {
		attrs = append(attrs, slog.String("underlying_error", e.Underlying.Error()))
	}

	for key, value := range e.Details {
		attrs = append(attrs, slog.Any(fmt.Sprintf("error_detail_%s", key), value))
	}

	return attrs
}
