package ttlstash

// Metrics receives store events. Implementations must be safe for concurrent
// use; they are called with the store lock held and must not call back into
// the store.
type Metrics interface {
	// ObserveOperation counts a public operation ("get", "set", ...).
	ObserveOperation(op string)

	// ObserveExpired counts keys dropped because their TTL passed.
	ObserveExpired(n int)

	// ObserveRestore counts a reload of the mirror from the backend.
	ObserveRestore()

	// ObserveSaveError counts a failed backend write by status.
	ObserveSaveError(code Status)

	// ObserveState reports the status and the current payload size in bytes.
	ObserveState(status Status, payloadBytes int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string)  {}
func (nopMetrics) ObserveExpired(int)       {}
func (nopMetrics) ObserveRestore()          {}
func (nopMetrics) ObserveSaveError(Status)  {}
func (nopMetrics) ObserveState(Status, int) {}
