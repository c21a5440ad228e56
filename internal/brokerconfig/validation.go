package brokerconfig

import (
	"fmt"
	"strings"
)

// ValidateLength checks a field value against its byte ceiling.
func ValidateLength(name, value string, max int) error {
	if len(value) > max {
		return NewValidationError(fmt.Sprintf("%s too long (max %d bytes): %d bytes", name, max, len(value)))
	}
	return nil
}

// ValidateBrokerPort checks that a port is empty or made of decimal digits
// within the field bound.
func ValidateBrokerPort(port string) error {
	if err := ValidateLength("broker port", port, MaxBrokerPortLen); err != nil {
		return err
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return NewValidationError(fmt.Sprintf("broker port must be numeric, got %q", port))
		}
	}
	return nil
}

// Validate checks every field of cfg. Returns a slice of validation errors
// (empty if valid).
func Validate(cfg ConnectionConfig) []error {
	var errors []error

	if err := ValidateLength("broker address", cfg.BrokerAddress, MaxBrokerAddressLen); err != nil {
		errors = append(errors, err)
	}
	if err := ValidateBrokerPort(cfg.BrokerPort); err != nil {
		errors = append(errors, err)
	}
	if err := ValidateLength("username", cfg.Username, MaxUsernameLen); err != nil {
		errors = append(errors, err)
	}
	if err := ValidateLength("password", cfg.Password, MaxPasswordLen); err != nil {
		errors = append(errors, err)
	}

	return errors
}

// FormatValidationErrors formats a slice of validation errors into a
// user-friendly message.
func FormatValidationErrors(errors []error) string {
	if len(errors) == 0 {
		return "No validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(errors)))
	for i, err := range errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
