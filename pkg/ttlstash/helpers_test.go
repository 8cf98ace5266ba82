package ttlstash

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// codedErr is a DOMException-like error.
type codedErr struct {
	name string
	code int
}

func (e codedErr) Error() string { return e.name }
func (e codedErr) Code() int     { return e.code }

// numberedErr is an HRESULT-carrying error.
type numberedErr struct {
	number int64
}

func (e numberedErr) Error() string { return "numbered failure" }
func (e numberedErr) Number() int64 { return e.number }

// fakeBackend is an in-memory Backend whose operations can be made to fail.
type fakeBackend struct {
	mu    sync.Mutex
	items map[string]string

	lenErr    error
	setErr    error
	removeErr error
	panicSet  any

	probeValue string
	subs       map[int]func()
	nextSub    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{items: map[string]string{}, subs: map[int]func(){}}
}

func (f *fakeBackend) GetItem(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	return v, ok, nil
}

func (f *fakeBackend) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicSet != nil {
		panic(f.panicSet)
	}
	if f.setErr != nil {
		return f.setErr
	}
	if key == ProbeKey {
		f.probeValue = value
	}
	f.items[key] = value
	return nil
}

func (f *fakeBackend) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.items, key)
	return nil
}

func (f *fakeBackend) Len() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lenErr != nil {
		return 0, f.lenErr
	}
	return len(f.items), nil
}

func (f *fakeBackend) Subscribe(fn func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}, nil
}

func (f *fakeBackend) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeBackend) payload(key string) (string, bool) {
	v, ok, _ := f.GetItem(key)
	return v, ok
}

func (f *fakeBackend) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
}

func (f *fakeBackend) fail(setErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = setErr
}

// degradedBackend reports itself as broken.
type degradedBackend struct {
	*fakeBackend
}

func (degradedBackend) Degraded() bool { return true }

// handleBackend reads its state through the receiver, so a typed nil
// panics on Degraded.
type handleBackend struct {
	*fakeBackend
	broken bool
}

func (h *handleBackend) Degraded() bool { return h.broken }

// ruledBackend contributes its own classification rules.
type ruledBackend struct {
	*fakeBackend
	rules []Rule
}

func (r ruledBackend) ErrorRules() []Rule { return r.rules }

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
