package portalclient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates an unexpected HTTP status
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response
	ErrTypeParse
	// ErrTypeValidation indicates the portal rejected the submitted values
	ErrTypeValidation
	// ErrTypeConflict indicates the portal already accepted a submission
	ErrTypeConflict
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing listens on the portal port
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeConflict:
		return "Already Submitted"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ClientError represents an error talking to a portal
type ClientError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	Details        []string            // Validation messages from the portal
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Host           string              // Portal host (for context)
	Retryable      bool                // Whether the error is retryable
}

// Error implements the error interface
func (e *ClientError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *ClientError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error
func ClassifyNetworkError(err error, host string) *ClientError {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, host)
	}

	if os.IsTimeout(err) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Err: err, Host: host, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ClientError{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
			Host:    host,
		}
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return &ClientError{Type: ErrTypeConnectionRefused, Message: "portal refused connection", Err: err, Host: host, Retryable: true}
	case errors.Is(err, syscall.EHOSTUNREACH):
		return &ClientError{Type: ErrTypeNetwork, Message: "host unreachable", Err: err, NetworkSubtype: NetworkErrorHostUnreachable, Host: host, Retryable: true}
	case errors.Is(err, syscall.ENETUNREACH):
		return &ClientError{Type: ErrTypeNetwork, Message: "network unreachable", Err: err, NetworkSubtype: NetworkErrorNetworkUnreachable, Host: host, Retryable: true}
	}

	return &ClientError{Type: ErrTypeNetwork, Message: "network error occurred", Err: err, Host: host, Retryable: true}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, host string, err error) *ClientError {
	classified := ClassifyNetworkError(err, host)
	classified.Message = message
	return classified
}

// NewHTTPError creates an HTTP-level error. Server errors are retryable.
func NewHTTPError(statusCode int, message string) *ClientError {
	return &ClientError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *ClientError {
	return &ClientError{Type: ErrTypeParse, Message: message, Err: err}
}

// NewValidationError creates a validation error carrying the portal's messages
func NewValidationError(message string, details []string) *ClientError {
	return &ClientError{Type: ErrTypeValidation, Message: message, StatusCode: 422, Details: details}
}

func isType(err error, types ...ErrorType) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	for _, t := range types {
		if ce.Type == t {
			return true
		}
	}
	return false
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS)
func IsNetworkError(err error) bool {
	return isType(err, ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS)
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool { return isType(err, ErrTypeHTTP) }

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool { return isType(err, ErrTypeParse) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return isType(err, ErrTypeValidation) }

// IsConflictError checks if the portal had already accepted a submission
func IsConflictError(err error) bool { return isType(err, ErrTypeConflict) }

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return "An unexpected error occurred. Please try again."
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The portal did not respond in time.",
			"Troubleshooting:",
			"  • Verify you're joined to the device's access point (SwartNinjaNoT<id>)",
			"  • The portal may have timed out; reset the device twice to reopen it",
			"  • Move closer to the device to improve signal strength",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The device refused the connection.",
			"Troubleshooting:",
			"  • The portal only runs while the device is provisioning",
			"  • Reset the device twice within 10 seconds to force the portal",
			"  • Verify the port number (default is 80)",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the portal hostname.",
			"Troubleshooting:",
			"  • Use the access point address instead (usually 10.42.0.1)",
			"  • Run 'provision-cfg scan' to find the portal",
		}, "\n")

	case ErrTypeNetwork:
		hint := []string{"Network communication failed."}
		switch ce.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			hint = append(hint, "The portal is not reachable.",
				"Troubleshooting:",
				"  • Verify the portal address is correct",
				"  • Try pinging the device: ping "+ce.Host)
		case NetworkErrorNetworkUnreachable:
			hint = append(hint, "Your computer cannot reach the device's network.",
				"Troubleshooting:",
				"  • Join the device's access point",
				"  • Verify WiFi is enabled on your computer")
		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Ensure you're joined to the device's access point")
		}
		return strings.Join(hint, "\n")

	case ErrTypeHTTP:
		if ce.StatusCode >= 500 {
			return fmt.Sprintf("The portal returned an error (HTTP %d). Reset the device and try again.", ce.StatusCode)
		}
		return fmt.Sprintf("The portal returned HTTP error %d. Check the request parameters.", ce.StatusCode)

	case ErrTypeParse:
		return "Failed to parse the portal's response. The device may run an incompatible version."

	case ErrTypeValidation:
		return "The portal rejected the values. Fix the fields listed above and submit again."

	case ErrTypeConflict:
		return "The portal already accepted a configuration and is closing. Reset the device twice to reopen it."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return err.Error()
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return "Portal not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Portal refused connection - is the device provisioning?"
	case ErrTypeDNS:
		return "Cannot resolve portal hostname"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeHTTP:
		return fmt.Sprintf("Portal error (HTTP %d)", ce.StatusCode)
	case ErrTypeParse:
		return "Failed to parse portal response"
	case ErrTypeValidation:
		return strings.Join(ce.Details, "; ")
	case ErrTypeConflict:
		return "Configuration already submitted"
	default:
		return ce.Message
	}
}
