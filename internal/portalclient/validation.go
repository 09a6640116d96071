package portalclient

import "fmt"

const (
	maxSSIDLength     = 32
	minPasswordLength = 8
	maxPasswordLength = 63
)

// ValidateSSID validates a WiFi SSID.
// SSIDs must be non-empty and <= 32 bytes (WiFi spec limit).
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return NewValidationError("WiFi SSID cannot be empty")
	}
	if len(ssid) > maxSSIDLength {
		return NewValidationError(fmt.Sprintf("WiFi SSID too long (max %d bytes): %d bytes", maxSSIDLength, len(ssid)))
	}
	return nil
}

// ValidatePassword validates a WiFi password.
// Empty joins an open network; otherwise WPA2 requires 8-63 characters.
func ValidatePassword(password string) error {
	if password == "" {
		return nil
	}
	if len(password) < minPasswordLength {
		return NewValidationError(fmt.Sprintf("WPA2 password too short (min %d chars): %d chars", minPasswordLength, len(password)))
	}
	if len(password) > maxPasswordLength {
		return NewValidationError(fmt.Sprintf("WPA2 password too long (max %d chars): %d chars", maxPasswordLength, len(password)))
	}
	return nil
}

// ValidateParams rejects an empty update or an empty parameter id.
func ValidateParams(values map[string]string) error {
	if len(values) == 0 {
		return NewValidationError("no parameters to update")
	}
	for id := range values {
		if id == "" {
			return NewValidationError("parameter id cannot be empty")
		}
	}
	return nil
}
