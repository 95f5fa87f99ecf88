package utils

import (
	"strings"
)

// sensitiveTerms marks keys and string values that must never reach logs.
var sensitiveTerms = []string{"password", "token", "secret", "key", "auth"}

func isSensitive(s string) bool {
	lower := strings.ToLower(s)
	for _, term := range sensitiveTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Sanitize walks a log payload and replaces the value of any key whose name
// matches a sensitive term, or any string that itself contains one, with
// RedactedMarker. Nested maps and slices are walked recursively; other
// values pass through unchanged.
func Sanitize(data any) any {
	switch v := data.(type) {
	case string:
		if isSensitive(v) {
			return RedactedMarker
		}
		return v
	case map[string]any:
		sanitized := make(map[string]any, len(v))
		for k, val := range v {
			if isSensitive(k) {
				sanitized[k] = RedactedMarker
				continue
			}
			sanitized[k] = Sanitize(val)
		}
		return sanitized
	case []any:
		sanitized := make([]any, len(v))
		for i, val := range v {
			sanitized[i] = Sanitize(val)
		}
		return sanitized
	case error:
		if v == nil {
			return nil
		}
		return Sanitize(v.Error())
	default:
		return v
	}
}
