package audit

import "strings"

// RedactionMarker replaces every sensitive value in stored payloads.
const RedactionMarker = "***REDACTED***"

// sensitiveFields is a substring heuristic matched case-insensitively
// against field names at any nesting depth.
var sensitiveFields = []string{
	"password", "secret", "token", "api_key",
	"credit_card", "card_number", "cvv", "pin",
}

// Sanitize returns a copy of data with sensitive values replaced by the
// redaction marker. Objects and lists of objects are walked recursively;
// other values pass through unchanged. Sanitizing an already-sanitized
// payload is a no-op.
func Sanitize(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		if isSensitiveKey(key) {
			out[key] = RedactionMarker
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return Sanitize(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// sanitizePayload never lets a sanitization bug block a business operation:
// on panic the whole payload degrades to a single redaction marker.
func sanitizePayload(data map[string]any) (out map[string]any) {
	if data == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			out = map[string]any{"payload": RedactionMarker}
		}
	}()
	return Sanitize(data)
}
