package config

import (
	"time"

	"github.com/yndnr/ttlstash/pkg/backend/rediskv"
	"github.com/yndnr/ttlstash/pkg/backend/sqlitekv"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// Default configuration values.
const (
	DefaultKind       = KindFiledir
	DefaultDir        = ".ttlstash"
	DefaultRedisAddr  = "127.0.0.1:6379"
	DefaultSQLiteFile = "ttlstash.db"
	DefaultGCInterval = 10 * time.Minute

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: ttlstash.DefaultConfig(),
		Backend: BackendSection{
			Kind: DefaultKind,
			Dir:  DefaultDir,
			Badger: BadgerConfig{
				GCInterval: DefaultGCInterval,
				SyncWrites: true,
			},
			Redis: RedisConfig{
				Addr:    DefaultRedisAddr,
				Prefix:  rediskv.DefaultPrefix,
				Channel: rediskv.DefaultChannel,
				Timeout: rediskv.DefaultTimeout,
			},
			SQLite: SQLiteConfig{
				File:         DefaultSQLiteFile,
				Table:        sqlitekv.DefaultTable,
				PollInterval: sqlitekv.DefaultPollInterval,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Defaults returns Default flattened to dotted keys, the form the loader
// takes as its lowest-priority source.
func Defaults() map[string]any {
	d := Default()
	return map[string]any{
		"store.engine":                 string(d.Store.Engine),
		"store.namespace":              d.Store.Namespace,
		"backend.kind":                 d.Backend.Kind,
		"backend.dir":                  d.Backend.Dir,
		"backend.memory.quota":         d.Backend.Memory.Quota,
		"backend.badger.gc_interval":   d.Backend.Badger.GCInterval.String(),
		"backend.badger.sync_writes":   d.Backend.Badger.SyncWrites,
		"backend.redis.addr":           d.Backend.Redis.Addr,
		"backend.redis.db":             d.Backend.Redis.DB,
		"backend.redis.prefix":         d.Backend.Redis.Prefix,
		"backend.redis.channel":        d.Backend.Redis.Channel,
		"backend.redis.timeout":        d.Backend.Redis.Timeout.String(),
		"backend.redis.tls.enabled":    d.Backend.Redis.TLS.Enabled,
		"backend.sqlite.file":          d.Backend.SQLite.File,
		"backend.sqlite.table":         d.Backend.SQLite.Table,
		"backend.sqlite.poll_interval": d.Backend.SQLite.PollInterval.String(),
		"log.level":                    d.Log.Level,
		"log.format":                   d.Log.Format,
	}
}
