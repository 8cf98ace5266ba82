// Package config defines the ttlstash tool configuration.
//
// The configuration is loaded by confloader from defaults, an optional YAML
// file, TTLSTASH_* environment variables and command-line flags, then
// checked by Verify. Sanitize masks credentials before the configuration is
// logged or printed.
package config
