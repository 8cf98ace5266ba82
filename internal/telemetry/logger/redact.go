package logger

import (
	"log/slog"
	"strings"
)

// valueKey is the attribute key carrying stored payloads.
const valueKey = "value"

// Key fragments that mark an attribute as a credential.
var credentialKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"auth",
}

// redactedValue is the placeholder for redacted data.
const redactedValue = "***REDACTED***"

// redactSensitive redacts stored values and credentials.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Key == valueKey && a.Value.Kind() != slog.KindGroup {
		return slog.String(a.Key, redactedValue)
	}
	return redactCredentials(a)
}

// redactCredentials redacts credentials only, recursing into groups.
func redactCredentials(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactCredentials(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if isCredentialKey(a.Key) && a.Value.String() != "" {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// isCredentialKey reports whether key names a credential.
func isCredentialKey(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range credentialKeyPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
