// Package sqlitekv provides a persistent backend on an SQLite file
// (pure Go driver, modernc.org/sqlite).
//
// Several processes may open the same file. Changes committed by any
// connection are detected by polling PRAGMA data_version on a dedicated
// connection, so notifications lag writes by at most one poll interval.
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/yndnr/ttlstash/pkg/backend/notify"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// Default configuration values.
const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultBusyTimeout  = 5 * time.Second
	DefaultTable        = "ttlstash_items"
)

// Config configures an SQLite backend.
type Config struct {
	// Path is the database file.
	Path string

	// Table holds the items. Default: DefaultTable.
	Table string

	// PollInterval is the data_version polling period.
	// Default: DefaultPollInterval.
	PollInterval time.Duration

	// BusyTimeout is how long a write waits on a locked database.
	// Default: DefaultBusyTimeout.
	BusyTimeout time.Duration
}

// Backend implements ttlstash.Backend on SQLite.
type Backend struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
	fanout notify.Fanout
	closed atomic.Bool

	getStmt string
	setStmt string
	delStmt string
	lenStmt string

	pollOnce sync.Once
	pollErr  error
	pollConn *sql.Conn
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlitekv: path is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = DefaultBusyTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: open: %w", err)
	}

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`, cfg.Table)
	if _, err := db.Exec(create); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitekv: create table: %w", err)
	}

	b := &Backend{
		db:      db,
		cfg:     cfg,
		logger:  logger,
		getStmt: fmt.Sprintf(`SELECT value FROM %q WHERE key = ?`, cfg.Table),
		setStmt: fmt.Sprintf(`INSERT INTO %q (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, cfg.Table),
		delStmt: fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, cfg.Table),
		lenStmt: fmt.Sprintf(`SELECT COUNT(*) FROM %q`, cfg.Table),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	return b, nil
}

// GetItem implements ttlstash.Backend.
func (b *Backend) GetItem(key string) (string, bool, error) {
	if b.closed.Load() {
		return "", false, ttlstash.ErrBackendClosed
	}
	var value string
	err := b.db.QueryRow(b.getStmt, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetItem implements ttlstash.Backend.
func (b *Backend) SetItem(key, value string) error {
	if b.closed.Load() {
		return ttlstash.ErrBackendClosed
	}
	_, err := b.db.Exec(b.setStmt, key, value)
	return err
}

// RemoveItem implements ttlstash.Backend.
func (b *Backend) RemoveItem(key string) error {
	if b.closed.Load() {
		return ttlstash.ErrBackendClosed
	}
	_, err := b.db.Exec(b.delStmt, key)
	return err
}

// Len implements ttlstash.Backend.
func (b *Backend) Len() (int, error) {
	if b.closed.Load() {
		return 0, ttlstash.ErrBackendClosed
	}
	var n int
	if err := b.db.QueryRow(b.lenStmt).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Subscribe implements ttlstash.Backend. Polling starts with the first call.
func (b *Backend) Subscribe(fn func()) (func(), error) {
	if b.closed.Load() {
		return nil, ttlstash.ErrBackendClosed
	}
	b.pollOnce.Do(func() {
		b.pollErr = b.startPolling()
	})
	if b.pollErr != nil {
		return nil, b.pollErr
	}
	return b.fanout.Subscribe(fn), nil
}

func (b *Backend) startPolling() error {
	conn, err := b.db.Conn(context.Background())
	if err != nil {
		close(b.doneCh)
		return fmt.Errorf("sqlitekv: poll connection: %w", err)
	}
	version, err := dataVersion(conn)
	if err != nil {
		conn.Close()
		close(b.doneCh)
		return fmt.Errorf("sqlitekv: read data_version: %w", err)
	}
	b.pollConn = conn

	go b.poll(version)
	return nil
}

func (b *Backend) poll(version int64) {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			v, err := dataVersion(b.pollConn)
			if err != nil {
				b.logger.Warn("sqlite data_version poll failed", "error", err)
				continue
			}
			if v != version {
				version = v
				b.fanout.Notify()
			}
		case <-b.stopCh:
			return
		}
	}
}

func dataVersion(conn *sql.Conn) (int64, error) {
	var v int64
	err := conn.QueryRowContext(context.Background(), "PRAGMA data_version").Scan(&v)
	return v, err
}

// ErrorRules implements ttlstash.RuleProvider. Every SQLite error is
// claimed here so the generic DOMException code table never sees SQLite's
// unrelated numeric codes.
func (b *Backend) ErrorRules() []ttlstash.Rule {
	return []ttlstash.Rule{
		{
			Name:    "sqlite-full",
			Match:   matchSQLiteCode(sqlite3.SQLITE_FULL),
			Code:    ttlstash.StatusQuotaExceeded,
			Message: ttlstash.ErrQuotaExceeded.Message,
		},
		{
			Name:    "sqlite-denied",
			Match:   matchSQLiteCode(sqlite3.SQLITE_READONLY, sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH),
			Code:    ttlstash.StatusDisabled,
			Message: ttlstash.ErrDisabled.Message,
		},
		{
			Name:    "sqlite-closed",
			Match:   ttlstash.MatchIs(sql.ErrConnDone),
			Code:    ttlstash.StatusDisabled,
			Message: ttlstash.ErrDisabled.Message,
		},
		{
			Name:  "sqlite-other",
			Match: matchSQLiteCode(),
			Code:  ttlstash.StatusException,
		},
	}
}

// matchSQLiteCode matches *sqlite.Error values whose primary result code is
// one of codes; with no codes it matches any SQLite error.
func matchSQLiteCode(codes ...int) func(error) bool {
	return func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		if len(codes) == 0 {
			return true
		}
		primary := se.Code() & 0xff
		for _, c := range codes {
			if primary == c {
				return true
			}
		}
		return false
	}
}

// Close stops polling and closes the database.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.fanout.Close()

	b.pollOnce.Do(func() { close(b.doneCh) })
	close(b.stopCh)
	<-b.doneCh

	if b.pollConn != nil {
		b.pollConn.Close()
	}
	return b.db.Close()
}
