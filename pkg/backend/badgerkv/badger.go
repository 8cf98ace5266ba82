// Package badgerkv provides a persistent backend on Badger v3.
//
// Items live under a key prefix so one database can host other data. A
// Badger database is owned by a single process; every handle in that
// process hears every committed change through Badger's subscription API.
package badgerkv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/pb"

	"github.com/yndnr/ttlstash/pkg/backend/notify"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// Config configures a Badger backend.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps the database in memory only.
	InMemory bool

	// Prefix namespaces item keys inside the database.
	// Default: "ttlstash/"
	Prefix string

	// GCInterval is the interval between value log GC runs.
	// Default: 10m. Zero disables the GC loop.
	GCInterval time.Duration

	// GCThreshold is the discard ratio handed to RunValueLogGC.
	// Default: 0.5
	GCThreshold float64

	// SyncWrites fsyncs after each write.
	// Default: true (each item is a whole document; losing it loses a namespace)
	SyncWrites bool
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		Prefix:      "ttlstash/",
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		SyncWrites:  true,
	}
}

// Backend implements ttlstash.Backend on a Badger database.
type Backend struct {
	db     *badger.DB
	cfg    Config
	prefix []byte
	logger *slog.Logger
	fanout notify.Fanout
	closed atomic.Bool

	lastGCTime atomic.Int64 // Unix milliseconds

	subOnce   sync.Once
	subCancel context.CancelFunc
	subDone   chan struct{}

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badgerkv: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig("").Prefix
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = DefaultConfig("").GCThreshold
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerkv: open db: %w", err)
	}

	b := &Backend{
		db:      db,
		cfg:     cfg,
		prefix:  []byte(cfg.Prefix),
		logger:  logger,
		subDone: make(chan struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		go b.gcLoop()
	} else {
		close(b.doneCh)
	}

	logger.Info("badger backend opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return b, nil
}

func (b *Backend) key(k string) []byte {
	out := make([]byte, 0, len(b.prefix)+len(k))
	out = append(out, b.prefix...)
	return append(out, k...)
}

// GetItem implements ttlstash.Backend.
func (b *Backend) GetItem(key string) (string, bool, error) {
	if b.closed.Load() {
		return "", false, ttlstash.ErrBackendClosed
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(value), true, nil
}

// SetItem implements ttlstash.Backend.
func (b *Backend) SetItem(key, value string) error {
	if b.closed.Load() {
		return ttlstash.ErrBackendClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(key), []byte(value))
	})
}

// RemoveItem implements ttlstash.Backend.
func (b *Backend) RemoveItem(key string) error {
	if b.closed.Load() {
		return ttlstash.ErrBackendClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
}

// Len implements ttlstash.Backend.
func (b *Backend) Len() (int, error) {
	if b.closed.Load() {
		return 0, ttlstash.ErrBackendClosed
	}

	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = b.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Subscribe implements ttlstash.Backend. The Badger subscription starts with
// the first call and covers every key under the prefix, including writes
// made through this handle.
func (b *Backend) Subscribe(fn func()) (func(), error) {
	if b.closed.Load() {
		return nil, ttlstash.ErrBackendClosed
	}
	b.subOnce.Do(b.startSubscription)
	return b.fanout.Subscribe(fn), nil
}

func (b *Backend) startSubscription() {
	ctx, cancel := context.WithCancel(context.Background())
	b.subCancel = cancel

	go func() {
		defer close(b.subDone)
		err := b.db.Subscribe(ctx, func(*badger.KVList) error {
			b.fanout.Notify()
			return nil
		}, []pb.Match{{Prefix: b.prefix}})
		if err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("badger subscription ended", "error", err)
		}
	}()
}

// ErrorRules implements ttlstash.RuleProvider.
func (b *Backend) ErrorRules() []ttlstash.Rule {
	return []ttlstash.Rule{
		{
			Name:    "badger-txn-too-big",
			Match:   ttlstash.MatchIs(badger.ErrTxnTooBig),
			Code:    ttlstash.StatusQuotaExceeded,
			Message: ttlstash.ErrQuotaExceeded.Message,
		},
		{
			Name:    "badger-blocked",
			Match:   ttlstash.MatchIs(badger.ErrBlockedWrites),
			Code:    ttlstash.StatusDisabled,
			Message: ttlstash.ErrDisabled.Message,
		},
	}
}

// GC runs value log garbage collection until nothing is left to rewrite.
func (b *Backend) GC() error {
	if b.cfg.InMemory {
		return nil
	}
	runs := 0
	for {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return fmt.Errorf("badgerkv: gc: %w", err)
		}
		runs++
	}
	b.lastGCTime.Store(time.Now().UnixMilli())
	b.logger.Debug("badger gc completed", "rewrites", runs)
	return nil
}

// LastGC returns the time of the last completed GC, zero if none ran.
func (b *Backend) LastGC() time.Time {
	ms := b.lastGCTime.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Size returns the on-disk LSM and value log sizes in bytes.
func (b *Backend) Size() (lsm, vlog int64) {
	return b.db.Size()
}

// Close stops background work and closes the database.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.logger.Info("closing badger backend")

	b.fanout.Close()

	b.subOnce.Do(func() { close(b.subDone) })
	if b.subCancel != nil {
		b.subCancel()
	}
	<-b.subDone

	close(b.stopCh)
	<-b.doneCh

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("badgerkv: close db: %w", err)
	}
	return nil
}

func (b *Backend) gcLoop() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.GC(); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
