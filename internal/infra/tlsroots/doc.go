// Package tlsroots builds client TLS configurations for network backends.
//
//   - roots.go: CA pool loading and tls.Config assembly
//   - watcher.go: client certificate hot reload via fsnotify
//
// A long-running process (ttlstash watch) keeps its Redis connection
// across certificate rotations: the client certificate is served from a
// Watcher that reloads the key pair whenever either file changes.
package tlsroots
