// Package repl provides the interactive shell of the ttlstash CLI.
//
//   - repl.go: read-eval-print loop and line splitting
//   - completer.go: command name completion
//   - history.go: command history persistence
//
// The loop knows nothing about stores: each line is split into arguments
// and handed to an Executor, which the CLI binds to its own commands.
package repl
