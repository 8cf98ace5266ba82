package ttlstash

import "fmt"

// Backend is a synchronous string key-value engine shared by every Store
// bound to it. Implementations must be safe for concurrent use.
type Backend interface {
	// GetItem returns the value stored under key. ok is false when the key
	// is absent.
	GetItem(key string) (value string, ok bool, err error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(key string) error

	// Len returns the number of items held by the engine.
	Len() (int, error)

	// Subscribe registers fn to be called whenever another context changes
	// any item of the engine. fn may run on a backend goroutine. The returned
	// function cancels the subscription; it is idempotent and must not be
	// called from inside fn.
	Subscribe(fn func()) (unsubscribe func(), err error)
}

// Degraded is implemented by backends that can report themselves as present
// but broken (a handle of unknown type). A degraded backend probes as
// StatusDisabled.
type Degraded interface {
	Degraded() bool
}

// guard runs fn, turning a panic inside the backend into an error so it can
// be classified like any other failure.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return fn()
}
