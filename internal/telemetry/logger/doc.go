// Package logger builds the structured logger used by ttlstash tools.
//
// It configures log/slog handlers (JSON by default, text on request) with a
// process-wide level that can be changed at runtime, and redacts attributes
// that could leak stored data or credentials:
//
//   - "value" attributes (stored payloads) are replaced unless value
//     logging is explicitly enabled
//   - attributes whose key names a credential (password, secret, token, ...)
//     are replaced entirely
//
// The library packages accept a plain *slog.Logger; this package is how the
// CLI produces one.
package logger
