package filedir

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/ttlstash/pkg/backend/backendtest"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

func openTemp(t *testing.T, dir string) *Backend {
	t.Helper()
	b, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) ttlstash.Backend {
		return openTemp(t, t.TempDir())
	})
	backendtest.RunNotify(t, func(t *testing.T) (ttlstash.Backend, ttlstash.Backend) {
		dir := t.TempDir()
		return openTemp(t, dir), openTemp(t, dir)
	})
}

func TestOpen_RequiresDir(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") should fail")
	}
}

func TestOpen_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	b := openTemp(t, dir)
	if b.Dir() != dir {
		t.Errorf("Dir() = %q", b.Dir())
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("dir not created: %v", err)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		key    string
		prefix string
	}{
		{"__ttlstash__", "__ttlstash__."},
		{"a/b c", "a_b_c."},
		{"../escape", "___escape."},
		{strings.Repeat("k", 100), strings.Repeat("k", 64) + "."},
	}
	for _, tt := range tests {
		name := FileName(tt.key)
		if !strings.HasPrefix(name, tt.prefix) || !strings.HasSuffix(name, itemExt) {
			t.Errorf("FileName(%q) = %q", tt.key, name)
		}
		if strings.ContainsAny(name, `/\`) {
			t.Errorf("FileName(%q) contains a separator", tt.key)
		}
	}

	if FileName("a/b") == FileName("a_b") {
		t.Error("keys with the same sanitized form share a file")
	}
}

func TestLen_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	b := openTemp(t, dir)
	b.SetItem("k", "v")

	os.WriteFile(filepath.Join(dir, tempPrefix+"leftover"+itemExt), []byte("x"), 0o600)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600)
	os.Mkdir(filepath.Join(dir, "sub"+itemExt), 0o750)

	if n, err := b.Len(); err != nil || n != 1 {
		t.Errorf("Len() = %d, %v; want 1", n, err)
	}
}

func TestSetItem_FileMode(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, WithFileMode(0o640))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	b.SetItem("k", "v")
	fi, err := os.Stat(filepath.Join(dir, FileName("k")))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o640 {
		t.Errorf("mode = %v, want 0640", fi.Mode().Perm())
	}
}

func TestClose(t *testing.T) {
	b, err := Open(t.TempDir())
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

	if _, _, err := b.GetItem("k"); !errors.Is(err, ttlstash.ErrBackendClosed) {
		t.Errorf("GetItem after Close = %v", err)
	}
	err = b.SetItem("k", "v")
	if ttlstash.DefaultClassifier().Classify(err).Code != ttlstash.StatusDisabled {
		t.Errorf("SetItem after Close classified as %v", err)
	}
	if _, err := b.Subscribe(func() {}); !errors.Is(err, ttlstash.ErrBackendClosed) {
		t.Errorf("Subscribe after Close = %v", err)
	}
}

func TestStoresShareDirectory(t *testing.T) {
	dir := t.TempDir()
	first := ttlstash.NewHost().Register(ttlstash.EnginePersistent, openTemp(t, dir))
	second := ttlstash.NewHost().Register(ttlstash.EnginePersistent, openTemp(t, dir))

	a, err := ttlstash.New(first)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	a.Set("greeting", "hi", nil)

	b, err := ttlstash.New(second)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if got := b.Get("greeting", nil); got != "hi" {
		t.Errorf("second process read %v", got)
	}
}
