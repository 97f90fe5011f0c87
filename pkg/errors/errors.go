package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown  ErrorCode = "UNKNOWN"
	ErrInternal ErrorCode = "INTERNAL"
	ErrNotFound ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad ErrorCode = "CONFIG_LOAD"

	// Startup errors
	ErrGameNotFound ErrorCode = "GAME_NOT_FOUND"

	// Fetch errors
	ErrSourceUnreachable ErrorCode = "SOURCE_UNREACHABLE"
	ErrSourceTooLarge    ErrorCode = "SOURCE_TOO_LARGE"
	ErrChecksumMismatch  ErrorCode = "CHECKSUM_MISMATCH"
	ErrCancelled         ErrorCode = "CANCELLED"

	// Extraction errors
	ErrCorruptArchive ErrorCode = "CORRUPT_ARCHIVE"
	ErrUnsafePath     ErrorCode = "UNSAFE_PATH"

	// Engine errors
	ErrOperationInProgress ErrorCode = "OPERATION_IN_PROGRESS"
	ErrAlreadyInstalled    ErrorCode = "ALREADY_INSTALLED"
	ErrNotInstalled        ErrorCode = "NOT_INSTALLED"
	ErrTargetExists        ErrorCode = "TARGET_EXISTS"
	ErrUninstallFailed     ErrorCode = "UNINSTALL_FAILED"

	// Persistence errors
	ErrPersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
)

// HudmanError represents a structured error with code and details
type HudmanError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *HudmanError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *HudmanError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *HudmanError) Is(target error) bool {
	var targetErr *HudmanError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new HudmanError with the given code and message
func New(code ErrorCode, message string) *HudmanError {
	return &HudmanError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new HudmanError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *HudmanError {
	return &HudmanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a HudmanError
func Wrap(err error, code ErrorCode, message string) *HudmanError {
	if err == nil {
		return nil
	}
	return &HudmanError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *HudmanError {
	if err == nil {
		return nil
	}
	return &HudmanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *HudmanError) WithDetail(key string, value interface{}) *HudmanError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var hudErr *HudmanError
	if errors.As(err, &hudErr) {
		return hudErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a HudmanError
func GetErrorCode(err error) ErrorCode {
	var hudErr *HudmanError
	if errors.As(err, &hudErr) {
		return hudErr.Code
	}
	return ErrUnknown
}
