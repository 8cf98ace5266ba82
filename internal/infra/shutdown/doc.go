// Package shutdown runs cleanup hooks when the process is asked to stop.
//
// A Handler waits for SIGINT, SIGTERM or an explicit Trigger, then runs the
// registered hooks in reverse order under a timeout. Long-running commands
// such as watch block in Wait and release their store from a hook.
package shutdown
