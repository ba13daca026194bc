package errors

import (
	"errors"
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

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the error code, walking wrapped causes. Errors outside the
// taxonomy report CodeInternalError; nil reports "".
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// Predefined error codes
const (
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeMissingColumn    = "MISSING_COLUMN"
	CodeInvalidTarget    = "INVALID_TARGET"
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeDegenerateFit    = "DEGENERATE_FIT"
	CodeStoreError       = "STORE_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Common error constructors

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func MissingColumn(column string) *AppError {
	return New(CodeMissingColumn, fmt.Sprintf("required column %s not found", column))
}

func InvalidTarget(target string) *AppError {
	return New(CodeInvalidTarget, fmt.Sprintf("unknown target axis %q", target))
}

func InsufficientData(message string) *AppError {
	return New(CodeInsufficientData, message)
}

func DegenerateFit(message string) *AppError {
	return New(CodeDegenerateFit, message)
}

func StoreError(message string, cause error) *AppError {
	return &AppError{Code: CodeStoreError, Message: message, Cause: cause}
}
