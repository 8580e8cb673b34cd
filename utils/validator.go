// utils/validator.go - request input helpers
package utils

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail reports whether the address has a plausible mailbox form.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// SanitizeInput trims surrounding whitespace and strips null bytes from
// free-text input before it is stored.
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	return strings.ReplaceAll(input, "\x00", "")
}
