package config

import "strings"

// Sanitize returns a copy of the config with credentials masked.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg
	if sanitized.Backend.Redis.Password != "" {
		sanitized.Backend.Redis.Password = maskSecret(sanitized.Backend.Redis.Password)
	}
	return &sanitized
}

// maskSecret masks a secret value for safe display.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
