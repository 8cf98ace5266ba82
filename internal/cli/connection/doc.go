// Package connection opens the backends described by a configuration and
// binds a store to them.
//
// The configured backend kind serves the persistent engine; the session
// engine is always a process-local memory backend, so a store that falls
// back still works for the lifetime of the command.
package connection
