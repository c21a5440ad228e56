package brokerconfig

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a configuration store failure
type ErrorType int

const (
	// ErrTypeNotMounted indicates the storage volume could not be mounted
	ErrTypeNotMounted ErrorType = iota
	// ErrTypeNotFound indicates no record exists
	ErrTypeNotFound
	// ErrTypeTooLarge indicates the stored record exceeds the size ceiling
	ErrTypeTooLarge
	// ErrTypeMalformed indicates the record could not be decoded or is incomplete
	ErrTypeMalformed
	// ErrTypeWriteFailed indicates the record could not be written
	ErrTypeWriteFailed
	// ErrTypeValidation indicates a value outside the field bounds
	ErrTypeValidation
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNotMounted:
		return "Storage Unavailable"
	case ErrTypeNotFound:
		return "Config Not Found"
	case ErrTypeTooLarge:
		return "Config Too Large"
	case ErrTypeMalformed:
		return "Config Malformed"
	case ErrTypeWriteFailed:
		return "Config Write Failed"
	case ErrTypeValidation:
		return "Validation Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ConfigError is returned by Store operations and by validation.
type ConfigError struct {
	Type    ErrorType // Category of error
	Path    string    // Record path on the volume (empty for validation)
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", e.Message, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, path, message string, err error) *ConfigError {
	return &ConfigError{Type: t, Path: path, Message: message, Err: err}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *ConfigError {
	return &ConfigError{Type: ErrTypeValidation, Message: message}
}

func hasType(err error, t ErrorType) bool {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Type == t
	}
	return false
}

// IsNotMounted checks if an error reports an unavailable storage volume
func IsNotMounted(err error) bool {
	return hasType(err, ErrTypeNotMounted)
}

// IsNotFound checks if an error reports a missing record
func IsNotFound(err error) bool {
	return hasType(err, ErrTypeNotFound)
}

// IsTooLarge checks if an error reports an oversized record
func IsTooLarge(err error) bool {
	return hasType(err, ErrTypeTooLarge)
}

// IsMalformed checks if an error reports an undecodable record
func IsMalformed(err error) bool {
	return hasType(err, ErrTypeMalformed)
}

// IsWriteFailed checks if an error reports a failed write
func IsWriteFailed(err error) bool {
	return hasType(err, ErrTypeWriteFailed)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrTypeValidation)
}
