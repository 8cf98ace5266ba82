package connection

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/yndnr/ttlstash/internal/config"
	"github.com/yndnr/ttlstash/internal/infra/tlsroots"
	"github.com/yndnr/ttlstash/pkg/backend/badgerkv"
	"github.com/yndnr/ttlstash/pkg/backend/filedir"
	"github.com/yndnr/ttlstash/pkg/backend/memory"
	"github.com/yndnr/ttlstash/pkg/backend/rediskv"
	"github.com/yndnr/ttlstash/pkg/backend/sqlitekv"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// Manager owns the backends opened for one command and the store on them.
type Manager struct {
	cfg     *config.Config
	logger  *slog.Logger
	host    *ttlstash.Host
	store   *ttlstash.Store
	closers []io.Closer
}

// NewManager creates a manager for cfg. Nothing is opened until Connect.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Connect opens the configured backend and creates the store. A store is
// returned even when it could not be bound; err then carries the
// classified status and the store works in memory only.
func (m *Manager) Connect(opts ...ttlstash.Option) (*ttlstash.Store, error) {
	if m.store != nil {
		return m.store, nil
	}

	persistent, err := m.openPersistent()
	if err != nil {
		m.Disconnect()
		return nil, err
	}

	session := memory.New()
	m.closers = append(m.closers, closerFunc(func() error {
		session.Bus().Close()
		return nil
	}))

	m.host = ttlstash.NewHost().
		Register(ttlstash.EnginePersistent, persistent).
		Register(ttlstash.EngineSession, session)

	opts = append([]ttlstash.Option{
		ttlstash.WithConfig(m.cfg.Store),
		ttlstash.WithLogger(m.logger),
	}, opts...)

	store, err := ttlstash.New(m.host, opts...)
	m.store = store
	return store, err
}

func (m *Manager) openPersistent() (ttlstash.Backend, error) {
	b := m.cfg.Backend
	logger := m.logger.With("backend", b.Kind)

	switch b.Kind {
	case config.KindMemory:
		bus := memory.NewBus(memory.WithQuota(b.Memory.Quota))
		m.closers = append(m.closers, closerFunc(func() error {
			bus.Close()
			return nil
		}))
		return bus.Open(), nil

	case config.KindFiledir:
		fd, err := filedir.Open(b.Dir, filedir.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, fd)
		return fd, nil

	case config.KindBadger:
		bcfg := badgerkv.DefaultConfig(b.Dir)
		bcfg.GCInterval = b.Badger.GCInterval
		bcfg.SyncWrites = b.Badger.SyncWrites
		bk, err := badgerkv.Open(bcfg, logger)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, bk)
		return bk, nil

	case config.KindSQLite:
		sk, err := sqlitekv.Open(sqlitekv.Config{
			Path:         filepath.Join(b.Dir, b.SQLite.File),
			Table:        b.SQLite.Table,
			PollInterval: b.SQLite.PollInterval,
		}, logger)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, sk)
		return sk, nil

	case config.KindRedis:
		tlsConfig, certs, err := tlsroots.ClientConfig(b.Redis.TLS, logger)
		if err != nil {
			return nil, fmt.Errorf("redis tls: %w", err)
		}
		if certs != nil {
			certs.StartAsync()
			m.closers = append(m.closers, certs)
		}

		rdb := redis.NewClient(&redis.Options{
			Addr:      b.Redis.Addr,
			DB:        b.Redis.DB,
			Password:  b.Redis.Password,
			TLSConfig: tlsConfig,
			MaintNotificationsConfig: &maintnotifications.Config{
				Mode: maintnotifications.ModeDisabled,
			},
		})
		rk := rediskv.New(rdb,
			rediskv.WithPrefix(b.Redis.Prefix),
			rediskv.WithChannel(b.Redis.Channel),
			rediskv.WithTimeout(b.Redis.Timeout),
			rediskv.WithLogger(logger))
		// Close the backend before the client it publishes through.
		m.closers = append(m.closers, rdb, rk)
		return rk, nil
	}
	return nil, fmt.Errorf("unknown backend kind %q", b.Kind)
}

// Store returns the connected store, nil before Connect.
func (m *Manager) Store() *ttlstash.Store {
	return m.store
}

// IsConnected reports whether Connect produced a store.
func (m *Manager) IsConnected() bool {
	return m.store != nil
}

// Disconnect closes the store and every backend, newest first.
func (m *Manager) Disconnect() error {
	var errs []error
	if m.store != nil {
		m.store.Close()
		m.store = nil
	}
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
