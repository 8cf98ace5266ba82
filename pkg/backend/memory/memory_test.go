package memory

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/ttlstash/pkg/backend/backendtest"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

func TestConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) ttlstash.Backend {
		b := New()
		t.Cleanup(b.Bus().Close)
		return b
	})
	backendtest.RunNotify(t, func(t *testing.T) (ttlstash.Backend, ttlstash.Backend) {
		bus := NewBus()
		t.Cleanup(bus.Close)
		return bus.Open(), bus.Open()
	})
}

func TestQuota(t *testing.T) {
	bus := NewBus(WithQuota(10))
	b := bus.Open()

	if err := b.SetItem("ab", "12345678"); err != nil {
		t.Fatalf("SetItem within quota: %v", err)
	}
	if bus.Used() != 10 {
		t.Errorf("Used() = %d, want 10", bus.Used())
	}

	err := b.SetItem("c", "x")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("SetItem over quota = %v", err)
	}
	if err.(*Error).Code() != 22 || err.Error() != "QuotaExceededError" {
		t.Errorf("quota error = %s (%d)", err, err.(*Error).Code())
	}
	if ttlstash.DefaultClassifier().Classify(err).Code != ttlstash.StatusQuotaExceeded {
		t.Error("quota error not classified as QUOTA_EXCEEDED")
	}

	if err := b.SetItem("ab", "1234"); err != nil {
		t.Fatalf("shrinking overwrite: %v", err)
	}
	if bus.Used() != 6 {
		t.Errorf("Used() = %d after shrink, want 6", bus.Used())
	}
	b.RemoveItem("ab")
	if bus.Used() != 0 {
		t.Errorf("Used() = %d after remove, want 0", bus.Used())
	}
}

func TestStoreOnFullBus(t *testing.T) {
	bus := NewBus(WithQuota(80))
	filler := bus.Open()
	if err := filler.SetItem("filler", strings.Repeat("x", 70)); err != nil {
		t.Fatal(err)
	}

	host := ttlstash.NewHost().
		Register(ttlstash.EnginePersistent, bus.Open()).
		Register(ttlstash.EngineSession, bus.Open())
	_, err := ttlstash.New(host)
	if ttlstash.StatusOf(err) != ttlstash.StatusQuotaExceeded {
		t.Errorf("New() on a full bus = %v", err)
	}
}

func TestDisable(t *testing.T) {
	bus := NewBus()
	b := bus.Open()
	b.SetItem("k", "v")

	bus.Disable()
	if _, _, err := b.GetItem("k"); !errors.Is(err, ErrSecurity) {
		t.Errorf("GetItem on disabled bus = %v", err)
	}
	if err := b.SetItem("k", "v"); !errors.Is(err, ErrSecurity) {
		t.Errorf("SetItem on disabled bus = %v", err)
	}
	if err := b.RemoveItem("k"); !errors.Is(err, ErrSecurity) {
		t.Errorf("RemoveItem on disabled bus = %v", err)
	}
	if _, err := b.Len(); !errors.Is(err, ErrSecurity) {
		t.Errorf("Len on disabled bus = %v", err)
	}
	if ttlstash.DefaultClassifier().Classify(ErrSecurity).Code != ttlstash.StatusDisabled {
		t.Error("security error not classified as DISABLED")
	}

	bus.Enable()
	if v, ok, err := b.GetItem("k"); !ok || err != nil || v != "v" {
		t.Errorf("GetItem after Enable = %q, %v, %v", v, ok, err)
	}
}

func TestNotifications(t *testing.T) {
	bus := NewBus()
	a, b := bus.Open(), bus.Open()

	own := make(chan struct{}, 4)
	peer := make(chan struct{}, 4)
	a.Subscribe(func() { own <- struct{}{} })
	b.Subscribe(func() { peer <- struct{}{} })

	a.SetItem("k", "v")
	select {
	case <-peer:
	case <-time.After(2 * time.Second):
		t.Fatal("peer not notified")
	}

	a.SetItem("k", "v")
	a.RemoveItem("missing")
	select {
	case <-peer:
		t.Error("no-op write notified the peer")
	case <-own:
		t.Error("writer notified of its own change")
	case <-time.After(50 * time.Millisecond):
	}

	bus.Close()
	a.SetItem("k", "changed")
	select {
	case <-peer:
		t.Error("notified after bus Close")
	case <-time.After(50 * time.Millisecond):
	}
}
