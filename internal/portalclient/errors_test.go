package portalclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantSubtype   NetworkErrorSubtype
		wantRetryable bool
	}{
		{
			name:          "timeout",
			err:           timeoutError{},
			wantType:      ErrTypeTimeout,
			wantSubtype:   NetworkErrorTimeout,
			wantRetryable: true,
		},
		{
			name:     "dns",
			err:      &net.DNSError{Name: "portal.local", Err: "no such host"},
			wantType:    ErrTypeDNS,
			wantSubtype: NetworkErrorDNS,
		},
		{
			name:          "connection refused",
			err:           &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			wantType:      ErrTypeConnectionRefused,
			wantSubtype:   NetworkErrorConnectionRefused,
			wantRetryable: true,
		},
		{
			name:          "host unreachable",
			err:           &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH},
			wantType:      ErrTypeNetwork,
			wantSubtype:   NetworkErrorHostUnreachable,
			wantRetryable: true,
		},
		{
			name:          "network unreachable inside url error",
			err:           &url.Error{Op: "Get", URL: "http://192.168.4.1", Err: &net.OpError{Op: "dial", Err: syscall.ENETUNREACH}},
			wantType:      ErrTypeNetwork,
			wantSubtype:   NetworkErrorNetworkUnreachable,
			wantRetryable: true,
		},
		{
			name:          "generic",
			err:           errors.New("something broke"),
			wantType:      ErrTypeNetwork,
			wantSubtype:   NetworkErrorGeneral,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := ClassifyNetworkError(tt.err, "192.168.4.1")
			if ce.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", ce.Type, tt.wantType)
			}
			if ce.NetworkSubtype != tt.wantSubtype {
				t.Errorf("NetworkSubtype = %v, want %v", ce.NetworkSubtype, tt.wantSubtype)
			}
			if ce.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", ce.Retryable, tt.wantRetryable)
			}
			if ce.Host != "192.168.4.1" {
				t.Errorf("Host = %v", ce.Host)
			}
			if !errors.Is(ce, tt.err) {
				t.Error("ClientError should unwrap to the original error")
			}
		})
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}
}

func TestErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("scan: %w", NewAuthError("bad credentials"))
	if !IsAuthError(wrapped) {
		t.Error("IsAuthError should see through wrapping")
	}
	if IsAuthError(errors.New("plain")) {
		t.Error("IsAuthError(plain) = true")
	}
	if !IsHTTPError(NewHTTPError(404, "x")) || IsRetryable(NewHTTPError(404, "x")) {
		t.Error("404 should be a non-retryable HTTP error")
	}
	if !IsRetryable(NewHTTPError(503, "x")) {
		t.Error("503 should be retryable")
	}
	if !IsNetworkError(NewNetworkError("dial", context.DeadlineExceeded)) {
		t.Error("deadline exceeded should be a network error")
	}
}

func TestErrorMessages(t *testing.T) {
	errs := []error{
		ClassifyNetworkError(timeoutError{}, "h"),
		ClassifyNetworkError(&net.DNSError{Name: "x"}, "h"),
		ClassifyNetworkError(&net.OpError{Err: syscall.ECONNREFUSED}, "h"),
		ClassifyNetworkError(&net.OpError{Err: syscall.EHOSTUNREACH}, "h"),
		NewAuthError("x"),
		NewHTTPError(http.StatusInternalServerError, "x"),
		NewHTTPError(http.StatusBadRequest, "x"),
		NewParseError("x", errors.New("y")),
		NewValidationError("bad ssid"),
	}
	for _, err := range errs {
		if GetTroubleshootingHint(err) == "" {
			t.Errorf("GetTroubleshootingHint(%v) is empty", err)
		}
		if GetShortErrorMessage(err) == "" {
			t.Errorf("GetShortErrorMessage(%v) is empty", err)
		}
	}
	if got := GetShortErrorMessage(NewValidationError("bad ssid")); got != "bad ssid" {
		t.Errorf("GetShortErrorMessage(validation) = %q", got)
	}
	if !strings.Contains(NewParseError("x", errors.New("y")).Error(), "caused by: y") {
		t.Error("Error() should include the cause")
	}
}
