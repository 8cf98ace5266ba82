// Package filedir provides a directory-backed persistent backend.
//
// Each item is one file in the directory, written with write-then-rename
// so readers never see a partial payload. Processes that point at the same
// directory share items, and an fsnotify watcher turns their writes into
// change notifications.
package filedir

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spaolacci/murmur3"

	"github.com/yndnr/ttlstash/pkg/backend/notify"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

const (
	itemExt    = ".item"
	tempPrefix = ".tmp-"

	// maxNameLen bounds the readable part of a file name.
	maxNameLen = 64
)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithFileMode sets the permission bits of item files. Default: 0600.
func WithFileMode(mode os.FileMode) Option {
	return func(b *Backend) {
		b.mode = mode
	}
}

// Backend stores items as files in a directory. It implements
// ttlstash.Backend.
type Backend struct {
	dir    string
	mode   os.FileMode
	logger *slog.Logger
	fanout notify.Fanout
	closed atomic.Bool

	watchOnce sync.Once
	watchErr  error
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

// Open creates dir if needed and returns a backend on it.
func Open(dir string, opts ...Option) (*Backend, error) {
	if dir == "" {
		return nil, errors.New("filedir: dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("filedir: create dir: %w", err)
	}

	b := &Backend{
		dir:    dir,
		mode:   0o600,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Dir returns the backing directory.
func (b *Backend) Dir() string {
	return b.dir
}

// FileName returns the file name holding key: a readable, sanitized prefix
// plus the key's murmur3 hash so distinct keys never share a file.
func FileName(key string) string {
	var sb strings.Builder
	for _, r := range key {
		if sb.Len() >= maxNameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	h1, h2 := murmur3.Sum128([]byte(key))
	return fmt.Sprintf("%s.%016x%016x%s", sb.String(), h1, h2, itemExt)
}

func (b *Backend) path(key string) string {
	return filepath.Join(b.dir, FileName(key))
}

// GetItem implements ttlstash.Backend.
func (b *Backend) GetItem(key string) (string, bool, error) {
	if b.closed.Load() {
		return "", false, ttlstash.ErrBackendClosed
	}
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("filedir: read: %w", err)
	}
	return string(data), true, nil
}

// SetItem implements ttlstash.Backend.
func (b *Backend) SetItem(key, value string) error {
	if b.closed.Load() {
		return ttlstash.ErrBackendClosed
	}

	tmp, err := os.CreateTemp(b.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("filedir: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.WriteString(value); err != nil {
		cleanup()
		return fmt.Errorf("filedir: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("filedir: sync: %w", err)
	}
	if err := tmp.Chmod(b.mode); err != nil {
		cleanup()
		return fmt.Errorf("filedir: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filedir: close: %w", err)
	}
	if err := os.Rename(tmpName, b.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filedir: rename: %w", err)
	}
	return nil
}

// RemoveItem implements ttlstash.Backend.
func (b *Backend) RemoveItem(key string) error {
	if b.closed.Load() {
		return ttlstash.ErrBackendClosed
	}
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filedir: remove: %w", err)
	}
	return nil
}

// Len implements ttlstash.Backend.
func (b *Backend) Len() (int, error) {
	if b.closed.Load() {
		return 0, ttlstash.ErrBackendClosed
	}
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, fmt.Errorf("filedir: read dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if isItem(e.Name()) && e.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}

// Subscribe implements ttlstash.Backend. The directory watcher starts with
// the first subscription. Writes made through this backend notify it too.
func (b *Backend) Subscribe(fn func()) (func(), error) {
	if b.closed.Load() {
		return nil, ttlstash.ErrBackendClosed
	}
	b.watchOnce.Do(func() {
		b.watchErr = b.startWatcher()
	})
	if b.watchErr != nil {
		return nil, b.watchErr
	}
	return b.fanout.Subscribe(fn), nil
}

// Close stops the watcher and cancels every subscription.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.fanout.Close()

	// Keep a later Subscribe from starting a watcher.
	b.watchOnce.Do(func() {})
	if b.watcher == nil {
		return nil
	}
	err := b.watcher.Close()
	<-b.done
	return err
}

func (b *Backend) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filedir: create watcher: %w", err)
	}
	if err := w.Add(b.dir); err != nil {
		w.Close()
		return fmt.Errorf("filedir: watch %s: %w", b.dir, err)
	}
	b.watcher = w
	go b.watch()
	b.logger.Debug("watching storage directory", "dir", b.dir)
	return nil
}

func (b *Backend) watch() {
	defer close(b.done)
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if !isItem(filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				b.fanout.Notify()
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Error("storage directory watcher error", "dir", b.dir, "error", err)
		}
	}
}

func isItem(name string) bool {
	return strings.HasSuffix(name, itemExt) && !strings.HasPrefix(name, tempPrefix)
}
