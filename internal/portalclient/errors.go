package portalclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection refused, timeout, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeAuth indicates an authentication failure (invalid credentials)
	ErrTypeAuth
	// ErrTypeHTTP indicates an HTTP-level error (unexpected status code)
	ErrTypeHTTP
	// ErrTypeParse indicates a parsing error (malformed JSON, invalid response)
	ErrTypeParse
	// ErrTypeValidation indicates invalid input, caught before or by the portal
	ErrTypeValidation
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the portal refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ClientError represents an error talking to a portal
type ClientError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Host           string              // Portal host (for context)
	Retryable      bool                // Whether the error is retryable
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ClientError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes an error and returns a more specific error type
func ClassifyNetworkError(err error, host string) *ClientError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &ClientError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Host:           host,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ClientError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Host:           host,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &ClientError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Portal refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Host:           host,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &ClientError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Host:           host,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &ClientError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		ce := ClassifyNetworkError(urlErr.Err, host)
		ce.Err = err
		return ce
	}

	return &ClientError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Host:           host,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *ClientError {
	classified := ClassifyNetworkError(err, "")
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &ClientError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *ClientError {
	return &ClientError{
		Type:       ErrTypeAuth,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
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
	return &ClientError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *ClientError {
	return &ClientError{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

func asClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	ok := errors.As(err, &ce)
	return ce, ok
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS, etc.)
func IsNetworkError(err error) bool {
	if ce, ok := asClientError(err); ok {
		return ce.Type == ErrTypeNetwork ||
			ce.Type == ErrTypeTimeout ||
			ce.Type == ErrTypeConnectionRefused ||
			ce.Type == ErrTypeDNS
	}
	return false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	ce, ok := asClientError(err)
	return ok && ce.Type == ErrTypeAuth
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	ce, ok := asClientError(err)
	return ok && ce.Type == ErrTypeHTTP
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	ce, ok := asClientError(err)
	return ok && ce.Type == ErrTypeParse
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	ce, ok := asClientError(err)
	return ok && ce.Type == ErrTypeValidation
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	ce, ok := asClientError(err)
	// Unknown errors are not retryable by default
	return ok && ce.Retryable
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	ce, ok := asClientError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The portal did not respond in time.",
			"Troubleshooting:",
			"  • Check that you're connected to the device's access point",
			"  • The portal may have closed after its timeout - restart the device",
			"  • Try increasing the timeout duration",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The portal refused the connection.",
			"Troubleshooting:",
			"  • The configuration portal may not be open",
			"  • Verify the port number (default is 80)",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the portal hostname.",
			"Troubleshooting:",
			"  • Use the portal IP address (usually 192.168.4.1) instead",
			"  • Run 'wifiportal discover' to find portals on the network",
		}, "\n")

	case ErrTypeAuth:
		return strings.Join([]string{
			"Authentication failed.",
			"Troubleshooting:",
			"  • Pass --user and --auth-password matching the portal's settings",
		}, "\n")

	case ErrTypeNetwork:
		hint := []string{"Network communication failed."}
		switch ce.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			hint = append(hint, "The portal is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify the portal address is correct",
				"  • Try pinging the portal: ping "+ce.Host)
		case NetworkErrorNetworkUnreachable:
			hint = append(hint, "Your computer cannot reach the portal's network.",
				"Troubleshooting:",
				"  • Join the device's access point",
				"  • Verify WiFi is enabled on your computer")
		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Ensure you're connected to the device's access point")
		}
		return strings.Join(hint, "\n")

	case ErrTypeHTTP:
		if ce.StatusCode >= 500 {
			return fmt.Sprintf("The portal returned an error (HTTP %d): %s", ce.StatusCode, ce.Message)
		}
		return fmt.Sprintf("The portal returned HTTP error %d. Check the request parameters.", ce.StatusCode)

	case ErrTypeParse:
		return "Failed to parse the portal's response. The address may not be a wifiportal."

	case ErrTypeValidation:
		return "The values are invalid. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	ce, ok := asClientError(err)
	if !ok {
		return err.Error()
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return "Portal not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Portal refused connection - is it open?"
	case ErrTypeDNS:
		return "Cannot resolve portal hostname"
	case ErrTypeAuth:
		return "Authentication failed - check credentials"
	case ErrTypeNetwork:
		switch ce.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Portal unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		return fmt.Sprintf("Portal error (HTTP %d)", ce.StatusCode)
	default:
		return ce.Message
	}
}
