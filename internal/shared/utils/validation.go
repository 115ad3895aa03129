package utils

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String length limits
const (
	MaxAddressLength = 256
	MaxMessageSize   = 4 * 1024
)

// ValidateString checks presence, rune length, encoding and null bytes
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil // Optional field, empty is OK
	}

	if !utf8.ValidString(value) {
		return fmt.Errorf("%s is not valid UTF-8", fieldName)
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Check for null bytes (security issue)
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateAddress checks a monitor address from a client. Addresses are
// opaque; only their shape is checked here, existence is up to the registry.
func ValidateAddress(address string) error {
	if err := ValidateString(address, "address", 1, MaxAddressLength, true); err != nil {
		return err
	}
	if strings.IndexFunc(address, unicode.IsControl) >= 0 {
		return fmt.Errorf("address contains invalid characters")
	}
	return nil
}
