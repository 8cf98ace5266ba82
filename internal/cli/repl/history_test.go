package repl

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestHistory_AddGet(t *testing.T) {
	h := NewHistory("", 3)

	h.Add("a")
	h.Add("b")
	h.Add("b")
	if got := h.Entries(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Entries() = %v", got)
	}

	h.Add("c")
	h.Add("d")
	if got := h.Entries(); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("Entries() after overflow = %v", got)
	}
	if h.Get(0) != "d" || h.Get(2) != "b" {
		t.Errorf("Get(0) = %q, Get(2) = %q", h.Get(0), h.Get(2))
	}
	if h.Get(3) != "" || h.Get(-1) != "" {
		t.Error("out-of-range Get should be empty")
	}
}

func TestHistory_DefaultSize(t *testing.T) {
	h := NewHistory("", 0)
	if h.maxSize != DefaultHistorySize {
		t.Errorf("maxSize = %d", h.maxSize)
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "history")

	h := NewHistory(file, 10)
	h.Add("set k v")
	h.Add("get k")
	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	fi, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("history mode = %v", fi.Mode().Perm())
	}

	loaded := NewHistory(file, 10)
	loaded.Add("keys")
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"set k v", "get k", "keys"}
	if got := loaded.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestHistory_LoadTrims(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history")
	os.WriteFile(file, []byte(strings.Repeat("line\n\n", 5)+"last\n"), 0o600)

	h := NewHistory(file, 2)
	if err := h.Load(); err != nil {
		t.Fatal(err)
	}
	if got := h.Entries(); !reflect.DeepEqual(got, []string{"line", "last"}) {
		t.Errorf("Entries() = %v", got)
	}
}

func TestHistory_NoFile(t *testing.T) {
	h := NewHistory("", 10)
	if err := h.Load(); err != nil {
		t.Errorf("Load() without file = %v", err)
	}
	if err := h.Save(); err != nil {
		t.Errorf("Save() without file = %v", err)
	}

	missing := NewHistory(filepath.Join(t.TempDir(), "absent"), 10)
	if err := missing.Load(); err != nil {
		t.Errorf("Load() of missing file = %v", err)
	}
}

func TestRun_PersistsHistory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history")
	run(t, "get k\nexit\n", WithHistory(NewHistory(file, 10)))

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "get k\nexit\n" {
		t.Errorf("history file = %q", data)
	}
}
