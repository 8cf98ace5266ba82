package sqlitekv

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/ttlstash/pkg/backend/backendtest"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openFile(t *testing.T, path string) *Backend {
	t.Helper()
	b, err := Open(Config{Path: path, PollInterval: 20 * time.Millisecond}, quiet())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) ttlstash.Backend {
		return openFile(t, filepath.Join(t.TempDir(), "kv.db"))
	})
	backendtest.RunNotify(t, func(t *testing.T) (ttlstash.Backend, ttlstash.Backend) {
		path := filepath.Join(t.TempDir(), "kv.db")
		return openFile(t, path), openFile(t, path)
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}, quiet()); err == nil {
		t.Error("Open without path should fail")
	}
}

func TestOpen_Defaults(t *testing.T) {
	b := openFile(t, filepath.Join(t.TempDir(), "kv.db"))
	if b.cfg.Table != DefaultTable || b.cfg.BusyTimeout != DefaultBusyTimeout {
		t.Errorf("cfg = %+v", b.cfg)
	}
}

func TestTablesAreIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	a := openFile(t, path)
	b, err := Open(Config{Path: path, Table: "other_items"}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	a.SetItem("k", "in default table")
	if _, ok, _ := b.GetItem("k"); ok {
		t.Error("item leaked across tables")
	}
	if n, _ := b.Len(); n != 0 {
		t.Errorf("Len() of other table = %d", n)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	b, err := Open(Config{Path: path}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	b.SetItem("k", "v")
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b = openFile(t, path)
	if v, ok, err := b.GetItem("k"); !ok || err != nil || v != "v" {
		t.Errorf("GetItem after reopen = %q, %v, %v", v, ok, err)
	}
}

func TestNoNotificationWithoutChange(t *testing.T) {
	b := openFile(t, filepath.Join(t.TempDir(), "kv.db"))

	signals := make(chan struct{}, 1)
	if _, err := b.Subscribe(func() { signals <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	b.GetItem("k")
	b.Len()

	select {
	case <-signals:
		t.Error("reads produced a change notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClose(t *testing.T) {
	b, err := Open(Config{Path: filepath.Join(t.TempDir(), "kv.db")}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Subscribe(func() {}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	err = b.SetItem("k", "v")
	if !errors.Is(err, ttlstash.ErrBackendClosed) {
		t.Errorf("SetItem after Close = %v", err)
	}
	c := ttlstash.DefaultClassifier().With(b.ErrorRules()...)
	if got := c.Classify(err).Code; got != ttlstash.StatusDisabled {
		t.Errorf("closed backend classified as %s", got)
	}
}

func TestErrorRules_ClaimSQLiteErrors(t *testing.T) {
	b := openFile(t, filepath.Join(t.TempDir(), "kv.db"))

	_, err := b.db.Exec("SELECT * FROM no_such_table")
	if err == nil {
		t.Fatal("query on missing table succeeded")
	}

	c := ttlstash.DefaultClassifier().With(b.ErrorRules()...)
	classified := c.Classify(err)
	if classified.Code != ttlstash.StatusException {
		t.Errorf("missing table classified as %s", classified.Code)
	}
	if classified.Message == "" {
		t.Error("native message dropped")
	}
}
