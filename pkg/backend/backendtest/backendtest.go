// Package backendtest holds the behavior every ttlstash.Backend must show,
// as a suite each backend package runs against its own implementation.
package backendtest

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// Factory opens a fresh, empty backend for one subtest. Cleanup belongs in
// t.Cleanup.
type Factory func(t *testing.T) ttlstash.Backend

// PeerFactory opens two handles on the same fresh storage, as two
// processes or contexts would see it.
type PeerFactory func(t *testing.T) (writer, reader ttlstash.Backend)

// NotifyTimeout bounds how long a change notification may take. Polling
// backends need most of it.
var NotifyTimeout = 5 * time.Second

// Run exercises the item operations and a Store round trip.
func Run(t *testing.T, open Factory) {
	t.Run("Items", func(t *testing.T) { testItems(t, open(t)) })
	t.Run("Len", func(t *testing.T) { testLen(t, open(t)) })
	t.Run("Store", func(t *testing.T) { testStore(t, open(t)) })
}

// RunNotify checks that a write through writer reaches subscribers of
// reader, and that unsubscribing stops delivery.
func RunNotify(t *testing.T, open PeerFactory) {
	t.Run("Notify", func(t *testing.T) {
		writer, reader := open(t)

		signals := make(chan struct{}, 1)
		unsubscribe, err := reader.Subscribe(func() {
			select {
			case signals <- struct{}{}:
			default:
			}
		})
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}

		if err := writer.SetItem("notify-key", "v1"); err != nil {
			t.Fatalf("SetItem() error = %v", err)
		}
		wait(t, signals)

		if err := writer.RemoveItem("notify-key"); err != nil {
			t.Fatalf("RemoveItem() error = %v", err)
		}
		wait(t, signals)

		unsubscribe()
		unsubscribe()
	})

	t.Run("StoreSync", func(t *testing.T) {
		writer, reader := open(t)

		a, err := ttlstash.New(ttlstash.NewHost().Register(ttlstash.EnginePersistent, writer),
			ttlstash.WithLogger(quiet()))
		if err != nil {
			t.Fatalf("New(writer) error = %v", err)
		}
		defer a.Close()

		synced := make(chan struct{}, 1)
		b, err := ttlstash.New(ttlstash.NewHost().Register(ttlstash.EnginePersistent, reader),
			ttlstash.WithLogger(quiet()),
			ttlstash.WithSyncHook(func() {
				select {
				case synced <- struct{}{}:
				default:
				}
			}))
		if err != nil {
			t.Fatalf("New(reader) error = %v", err)
		}
		defer b.Close()

		if err := a.Set("shared", "hello", nil); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		deadline := time.After(NotifyTimeout)
		for b.Get("shared", nil) != "hello" {
			select {
			case <-synced:
			case <-deadline:
				t.Fatal("reader store never saw the write")
			}
		}
	})
}

func testItems(t *testing.T, b ttlstash.Backend) {
	if _, ok, err := b.GetItem("missing"); ok || err != nil {
		t.Errorf("GetItem(missing) = %v, %v", ok, err)
	}

	if err := b.SetItem("k", `{"values":{}}`); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}
	v, ok, err := b.GetItem("k")
	if !ok || err != nil || v != `{"values":{}}` {
		t.Errorf("GetItem(k) = %q, %v, %v", v, ok, err)
	}

	if err := b.SetItem("k", "second"); err != nil {
		t.Fatalf("SetItem(overwrite) error = %v", err)
	}
	if v, _, _ := b.GetItem("k"); v != "second" {
		t.Errorf("GetItem after overwrite = %q", v)
	}

	if err := b.SetItem("weird/key with spaces:ü", "x"); err != nil {
		t.Fatalf("SetItem(weird key) error = %v", err)
	}
	if v, ok, _ := b.GetItem("weird/key with spaces:ü"); !ok || v != "x" {
		t.Errorf("GetItem(weird key) = %q, %v", v, ok)
	}

	if err := b.RemoveItem("k"); err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}
	if _, ok, _ := b.GetItem("k"); ok {
		t.Error("item present after RemoveItem")
	}
	if err := b.RemoveItem("k"); err != nil {
		t.Errorf("RemoveItem(absent) error = %v", err)
	}
}

func testLen(t *testing.T, b ttlstash.Backend) {
	n, err := b.Len()
	if err != nil || n != 0 {
		t.Fatalf("Len() of empty backend = %d, %v", n, err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := b.SetItem(k, k); err != nil {
			t.Fatal(err)
		}
	}
	b.SetItem("a", "again")
	b.RemoveItem("b")

	if n, err := b.Len(); err != nil || n != 2 {
		t.Errorf("Len() = %d, %v; want 2", n, err)
	}
}

func testStore(t *testing.T, b ttlstash.Backend) {
	host := ttlstash.NewHost().Register(ttlstash.EnginePersistent, b)

	s, err := ttlstash.New(host, ttlstash.WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Engine() != ttlstash.EnginePersistent {
		t.Errorf("Engine() = %s", s.Engine())
	}
	if _, ok, _ := b.GetItem(ttlstash.ProbeKey); ok {
		t.Error("probe key left behind")
	}

	if err := s.Set("user", map[string]any{"name": "ann"}, ttlstash.Seconds(3600)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	again, err := ttlstash.New(host, ttlstash.WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer again.Close()

	user, ok := again.Get("user", nil).(map[string]any)
	if !ok || user["name"] != "ann" {
		t.Errorf("Get(user) = %v", again.Get("user", nil))
	}
	if _, ok := again.GetTTL("user"); !ok {
		t.Error("expiry not persisted")
	}

	if err := again.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := b.GetItem(ttlstash.DefaultNamespace); ok {
		t.Error("Clear left the namespace item")
	}
}

func wait(t *testing.T, signals <-chan struct{}) {
	t.Helper()
	select {
	case <-signals:
	case <-time.After(NotifyTimeout):
		t.Fatal("no change notification")
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
