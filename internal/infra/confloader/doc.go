// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. defaults (a flat map of dotted keys)
//  2. a YAML file
//  3. environment variables under a prefix
//  4. explicit overrides (command-line flags)
//
// Environment names map to keys by dropping the prefix and lowercasing.
// A double underscore separates nesting levels and keeps single underscores
// inside a key name; without one, every underscore is a level separator:
//
//	TTLSTASH_LOG_LEVEL                   -> log.level
//	TTLSTASH_BACKEND__SQLITE__POLL_INTERVAL -> backend.sqlite.poll_interval
//
// Watcher reports writes to the configuration file so long-running commands
// can re-read it.
package confloader
