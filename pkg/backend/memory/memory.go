// Package memory provides a process-local backend.
//
// A Bus holds the items; each Backend opened on it is one context. Changes
// made through one Backend notify the subscribers of every other Backend on
// the same Bus, never its own, so several stores in one process behave like
// tabs sharing a browser's storage.
//
// The bus can simulate the failure modes of a real engine: a byte quota
// (QuotaExceededError, code 22) and a disabled state (SecurityError,
// code 18).
package memory

import (
	"sync"
	"sync/atomic"

	"github.com/yndnr/ttlstash/pkg/backend/notify"
	"github.com/yndnr/ttlstash/pkg/cmap"
)

// Error mirrors a DOMException: a name plus a legacy numeric code.
type Error struct {
	name string
	code int
}

// Error implements the error interface.
func (e *Error) Error() string { return e.name }

// Code returns the legacy DOMException code.
func (e *Error) Code() int { return e.code }

var (
	// ErrQuotaExceeded is returned by writes that would exceed the quota.
	ErrQuotaExceeded = &Error{name: "QuotaExceededError", code: 22}

	// ErrSecurity is returned by every operation on a disabled bus.
	ErrSecurity = &Error{name: "SecurityError", code: 18}
)

// Option configures a Bus.
type Option func(*Bus)

// WithQuota limits the total size of keys plus values to bytes. Zero or
// negative means unlimited.
func WithQuota(bytes int) Option {
	return func(b *Bus) {
		b.quota = bytes
	}
}

// Bus is the storage shared by every Backend opened on it.
type Bus struct {
	items    *cmap.Map[string]
	fanout   notify.Fanout
	quota    int
	disabled atomic.Bool
	nextID   atomic.Uint64

	// writeMu serializes writes so quota accounting stays exact.
	writeMu sync.Mutex
	used    int
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{items: cmap.New[string]()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// New creates a bus and returns a single context on it.
func New(opts ...Option) *Backend {
	return NewBus(opts...).Open()
}

// Open returns a new context on the bus.
func (b *Bus) Open() *Backend {
	return &Backend{bus: b, origin: notify.Origin(b.nextID.Add(1))}
}

// Disable makes every operation fail with ErrSecurity.
func (b *Bus) Disable() { b.disabled.Store(true) }

// Enable reverts Disable.
func (b *Bus) Enable() { b.disabled.Store(false) }

// Used returns the bytes currently accounted against the quota.
func (b *Bus) Used() int {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.used
}

// Close cancels every subscription on the bus.
func (b *Bus) Close() {
	b.fanout.Close()
}

// Backend is one context on a Bus. It implements ttlstash.Backend.
type Backend struct {
	bus    *Bus
	origin notify.Origin
}

// Bus returns the bus this context belongs to.
func (m *Backend) Bus() *Bus {
	return m.bus
}

// GetItem implements ttlstash.Backend.
func (m *Backend) GetItem(key string) (string, bool, error) {
	if m.bus.disabled.Load() {
		return "", false, ErrSecurity
	}
	v, ok := m.bus.items.Get(key)
	return v, ok, nil
}

// SetItem implements ttlstash.Backend.
func (m *Backend) SetItem(key, value string) error {
	b := m.bus
	if b.disabled.Load() {
		return ErrSecurity
	}

	b.writeMu.Lock()
	prev, existed := b.items.Get(key)
	used := b.used + len(value)
	if existed {
		used -= len(prev)
	} else {
		used += len(key)
	}
	if b.quota > 0 && used > b.quota {
		b.writeMu.Unlock()
		return ErrQuotaExceeded
	}
	b.items.Set(key, value)
	b.used = used
	b.writeMu.Unlock()

	if !existed || prev != value {
		b.fanout.NotifyExcept(m.origin)
	}
	return nil
}

// RemoveItem implements ttlstash.Backend.
func (m *Backend) RemoveItem(key string) error {
	b := m.bus
	if b.disabled.Load() {
		return ErrSecurity
	}

	b.writeMu.Lock()
	prev, existed := b.items.Delete(key)
	if existed {
		b.used -= len(key) + len(prev)
	}
	b.writeMu.Unlock()

	if existed {
		b.fanout.NotifyExcept(m.origin)
	}
	return nil
}

// Len implements ttlstash.Backend.
func (m *Backend) Len() (int, error) {
	if m.bus.disabled.Load() {
		return 0, ErrSecurity
	}
	return m.bus.items.Count(), nil
}

// Subscribe implements ttlstash.Backend. fn hears changes made through other
// contexts on the same bus.
func (m *Backend) Subscribe(fn func()) (func(), error) {
	return m.bus.fanout.SubscribeFrom(m.origin, fn), nil
}
