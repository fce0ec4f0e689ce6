package observability

import "strings"

// sensitiveKeyFragments marks map keys whose values must never reach logs,
// audit rows, or escalation payloads.
var sensitiveKeyFragments = []string{
	"secret",
	"token",
	"password",
	"api_key",
	"apikey",
	"authorization",
	"card",
	"cvv",
	"pan",
}

const redactedPlaceholder = "[REDACTED]"

// RedactMap returns a copy of fields with sensitive values replaced. Nested
// maps are redacted recursively; the input is never mutated.
func RedactMap(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if isSensitiveKey(key) {
			out[key] = redactedPlaceholder
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = RedactMap(nested)
			continue
		}
		out[key] = value
	}

	return out
}

func isSensitiveKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}

// CustomerIDPrefix truncates a customer id for operator-facing alerts so the
// full identifier never leaves the primary store.
func CustomerIDPrefix(customerID string) string {
	const visible = 8
	if len(customerID) <= visible {
		return customerID
	}
	return customerID[:visible] + "…"
}
