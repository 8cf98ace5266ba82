package ttlstash

// Status is the state of a Store. It doubles as the code carried by *Error.
type Status string

const (
	// StatusReady means the backend is usable and every mutation is persisted.
	StatusReady Status = "READY"

	// StatusNotAvailable means the host has no backend for the engine.
	StatusNotAvailable Status = "NOT_AVAILABLE"

	// StatusDisabled means a backend exists but is inert: private mode,
	// permission denied, or closed while in use.
	StatusDisabled Status = "DISABLED"

	// StatusQuotaExceeded means the backend rejected a write for lack of space.
	StatusQuotaExceeded Status = "QUOTA_EXCEEDED"

	// StatusException means an unclassified backend failure.
	StatusException Status = "EXCEPTION"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusReady, StatusNotAvailable, StatusDisabled, StatusQuotaExceeded, StatusException:
		return true
	default:
		return false
	}
}
