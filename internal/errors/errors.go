package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid  = "CONFIG_INVALID"
	CodeSchemaError    = "SCHEMA_ERROR"
	CodeTrialType      = "TRIAL_TYPE_UNKNOWN"
	CodeIngestError    = "INGEST_ERROR"
	CodeModelError     = "MODEL_ERROR"
	CodeDatabaseError  = "DATABASE_ERROR"
	CodeExportError    = "EXPORT_ERROR"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeInvalidInput   = "INVALID_INPUT"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func SchemaError(file string, cause error) *AppError {
	return &AppError{
		Code:    CodeSchemaError,
		Message: fmt.Sprintf("schema violation in %s", file),
		Cause:   cause,
	}
}

func IngestError(message string, cause error) *AppError {
	return &AppError{Code: CodeIngestError, Message: message, Cause: cause}
}

func ModelError(message string, cause error) *AppError {
	return &AppError{Code: CodeModelError, Message: message, Cause: cause}
}

func ExportError(message string, cause error) *AppError {
	return &AppError{Code: CodeExportError, Message: message, Cause: cause}
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
