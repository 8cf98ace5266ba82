package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/ttlstash/pkg/backend/memory"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.Operations == nil || r.SaveErrors == nil {
		t.Error("counter vectors are nil")
	}
}

func TestHandler_RuntimeMetrics(t *testing.T) {
	body := scrape(t, NewRegistry())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
}

func TestStoreMetrics(t *testing.T) {
	r := NewRegistry()

	r.ObserveOperation("get")
	r.ObserveOperation("get")
	r.ObserveOperation("set")
	r.ObserveExpired(3)
	r.ObserveExpired(0)
	r.ObserveRestore()
	r.ObserveSaveError(ttlstash.StatusQuotaExceeded)
	r.ObserveState(ttlstash.StatusReady, 128)

	body := scrape(t, r)

	for _, want := range []string{
		`ttlstash_store_operations_total{op="get"} 2`,
		`ttlstash_store_operations_total{op="set"} 1`,
		`ttlstash_store_expired_total 3`,
		`ttlstash_store_restores_total 1`,
		`ttlstash_store_save_errors_total{code="QUOTA_EXCEEDED"} 1`,
		`ttlstash_store_ready 1`,
		`ttlstash_store_payload_bytes 128`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestObserveState_NotReady(t *testing.T) {
	r := NewRegistry()
	r.ObserveState(ttlstash.StatusReady, 10)
	r.ObserveState(ttlstash.StatusDisabled, 0)

	body := scrape(t, r)
	if !strings.Contains(body, "ttlstash_store_ready 0") {
		t.Error("expected ttlstash_store_ready 0")
	}
	if !strings.Contains(body, "ttlstash_store_payload_bytes 10") {
		t.Error("payload size should keep the last persisted value")
	}
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	r.ObserveOperation("set")
	r.ObserveOperation("get")
	r.ObserveRestore()

	samples, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	var ops []string
	for _, s := range samples {
		if !strings.HasPrefix(s.Name, "ttlstash_") {
			t.Errorf("unexpected series %s", s.Name)
		}
		if s.Name == "ttlstash_store_operations_total" {
			ops = append(ops, s.Labels["op"])
		}
		if s.Name == "ttlstash_store_restores_total" && s.Value != 1 {
			t.Errorf("restores = %v, want 1", s.Value)
		}
	}
	if len(ops) != 2 || ops[0] != "get" || ops[1] != "set" {
		t.Errorf("operation labels = %v, want [get set]", ops)
	}
}

func TestGatherer(t *testing.T) {
	r := NewRegistry()
	r.ObserveOperation("set")
	r.ObserveOperation("get")
	r.ObserveOperation("get")
	r.ObserveSaveError(ttlstash.StatusQuotaExceeded)

	n, err := testutil.GatherAndCount(r.Gatherer(), "ttlstash_store_operations_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 2 {
		t.Errorf("operation series = %d, want 2", n)
	}

	n, err = testutil.GatherAndCount(r.Gatherer(), "ttlstash_store_save_errors_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Errorf("save error series = %d, want 1", n)
	}
}

func TestStoreIntegration(t *testing.T) {
	r := NewRegistry()
	host := ttlstash.NewHost().Register(ttlstash.EngineSession, memory.New())

	s, err := ttlstash.New(host, ttlstash.WithEngine(ttlstash.EngineSession), ttlstash.WithMetrics(r))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.Set("k", "v", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Get("k", nil)

	body := scrape(t, r)
	if !strings.Contains(body, "ttlstash_store_ready 1") {
		t.Error("expected ready store")
	}
	if !strings.Contains(body, `ttlstash_store_operations_total{op="set"} 1`) {
		t.Error("expected one set operation")
	}
}
