package portalclient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
	"testing"
)

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		t    ErrorType
		want string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeHTTP, "HTTP Error"},
		{ErrTypeParse, "Parse Error"},
		{ErrTypeValidation, "Validation Error"},
		{ErrTypeConflict, "Already Submitted"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeConnectionRefused, "Connection Refused"},
		{ErrTypeDNS, "DNS Error"},
		{ErrorType(99), "ErrorType(99)"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestClassifyNetworkError(t *testing.T) {
	refused := &url.Error{Op: "Get", URL: "http://10.0.1.1/info", Err: &net.OpError{
		Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}}
	unreachable := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)}
	netUnreachable := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ENETUNREACH)}
	dnsErr := &net.DNSError{Err: "no such host", Name: "portal.local"}
	timeout := &net.DNSError{Err: "i/o timeout", Name: "portal.local", IsTimeout: true}

	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		subtype   NetworkErrorSubtype
		retryable bool
	}{
		{"refused", refused, ErrTypeConnectionRefused, NetworkErrorGeneral, true},
		{"host unreachable", unreachable, ErrTypeNetwork, NetworkErrorHostUnreachable, true},
		{"network unreachable", netUnreachable, ErrTypeNetwork, NetworkErrorNetworkUnreachable, true},
		{"dns", dnsErr, ErrTypeDNS, NetworkErrorGeneral, false},
		{"timeout", timeout, ErrTypeTimeout, NetworkErrorGeneral, true},
		{"generic", errors.New("broken pipe"), ErrTypeNetwork, NetworkErrorGeneral, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := ClassifyNetworkError(tt.err, "10.0.1.1")
			if ce.Type != tt.wantType || ce.NetworkSubtype != tt.subtype || ce.Retryable != tt.retryable {
				t.Errorf("ClassifyNetworkError() = %+v", ce)
			}
			if ce.Host != "10.0.1.1" {
				t.Errorf("Host = %q", ce.Host)
			}
		})
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("nil error should classify to nil")
	}
}

func TestClientErrorMessage(t *testing.T) {
	err := NewValidationError("portal rejected the configuration", []string{"port must be numeric"})
	if !strings.Contains(err.Error(), "port must be numeric") {
		t.Errorf("Error() = %q", err.Error())
	}

	cause := errors.New("EOF")
	nerr := NewNetworkError("POST /save failed", "10.0.1.1", cause)
	if !errors.Is(nerr, cause) || !strings.Contains(nerr.Error(), "POST /save failed") {
		t.Errorf("Error() = %q", nerr.Error())
	}
}

func TestIsHelpersSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewHTTPError(503, "unavailable"))
	if !IsHTTPError(wrapped) || !IsRetryable(wrapped) {
		t.Error("wrapped 503 should be a retryable HTTP error")
	}
	if IsRetryable(NewHTTPError(404, "not found")) {
		t.Error("4xx should not be retryable")
	}
	if IsRetryable(errors.New("plain")) || IsNetworkError(errors.New("plain")) {
		t.Error("plain errors match no type")
	}
}

func TestTroubleshootingHints(t *testing.T) {
	errs := []error{
		&ClientError{Type: ErrTypeTimeout},
		&ClientError{Type: ErrTypeConnectionRefused},
		&ClientError{Type: ErrTypeDNS},
		&ClientError{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorHostUnreachable, Host: "10.0.1.1"},
		&ClientError{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorNetworkUnreachable},
		&ClientError{Type: ErrTypeNetwork},
		NewHTTPError(500, "boom"),
		NewHTTPError(400, "bad"),
		NewParseError("bad json", nil),
		NewValidationError("rejected", nil),
		&ClientError{Type: ErrTypeConflict},
	}
	for _, err := range errs {
		if GetTroubleshootingHint(err) == "" || GetShortErrorMessage(err) == "" && !IsValidationError(err) {
			t.Errorf("missing hint for %v", err)
		}
	}
	if !strings.Contains(GetTroubleshootingHint(errs[3]), "ping 10.0.1.1") {
		t.Error("host unreachable hint should name the host")
	}
	if GetShortErrorMessage(errors.New("plain")) != "plain" {
		t.Error("plain errors should pass through")
	}
}
