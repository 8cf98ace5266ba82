// Package command defines the ttlstash command-line interface.
//
// Every invocation loads the configuration (file, TTLSTASH_* environment,
// flags), opens the configured backend through connection.Manager and binds
// one store to it. Key commands (get, set, ttl, expire, rm, has, keys,
// clear) operate on that store; status, stats, config and version report on
// it; watch stays attached and prints the contents on every change until
// interrupted.
package command
