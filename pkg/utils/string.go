package utils

import (
	"strings"
	"unicode"
)

// SanitizeString removes control characters and surrounding whitespace so
// client-supplied values are safe to log.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// TruncateString truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// MaskSecret keeps the first visibleChars characters of s and replaces the
// rest with a fixed marker, so log lines never carry a usable secret.
func MaskSecret(s string, visibleChars int) string {
	if s == "" {
		return ""
	}
	if len(s) <= visibleChars*2 {
		return "***"
	}
	return s[:visibleChars] + "***"
}
