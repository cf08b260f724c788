package environment

import "strings"

var sensitivePatterns = []string{
	"password", "secret", "key", "token", "auth", "credential", "store",
}

// IsSensitive is a simple heuristic for values that should not be echoed back
// to a terminal.
func IsSensitive(key, value string) bool {
	key = strings.ToLower(key)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(key, pattern) {
			return true
		}
	}

	// URLs with embedded credentials
	if strings.Contains(value, "://") && strings.Contains(value, "@") {
		return true
	}

	return false
}

// Mask hides all but a short prefix of a sensitive value.
func Mask(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-2)
}
