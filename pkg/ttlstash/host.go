package ttlstash

import "sync"

// Engine names a storage engine on a Host.
type Engine string

const (
	// EnginePersistent survives process restarts.
	EnginePersistent Engine = "persistent"

	// EngineSession lives as long as the hosting session.
	EngineSession Engine = "session"
)

// Valid reports whether e is a known engine.
func (e Engine) Valid() bool {
	return e == EnginePersistent || e == EngineSession
}

// Host is the registry a Store resolves engines from.
//
// An engine registered with a nil Backend models a handle that exists but is
// null (storage turned off); an engine that was never registered models a
// platform without support for it.
type Host struct {
	mu       sync.RWMutex
	backends map[Engine]Backend
}

// NewHost creates an empty host.
func NewHost() *Host {
	return &Host{backends: make(map[Engine]Backend)}
}

// Register binds b to engine, replacing any previous binding. b may be nil.
func (h *Host) Register(engine Engine, b Backend) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backends[engine] = b
	return h
}

// Unregister removes the binding for engine.
func (h *Host) Unregister(engine Engine) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.backends, engine)
}

// Lookup returns the backend bound to engine. registered is false when the
// engine was never registered; b may be nil even when registered is true.
func (h *Host) Lookup(engine Engine) (b Backend, registered bool) {
	if h == nil {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, registered = h.backends[engine]
	return b, registered
}
