package config

import (
	"time"

	"github.com/yndnr/ttlstash/internal/infra/tlsroots"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// Backend kinds.
const (
	KindMemory  = "memory"
	KindFiledir = "filedir"
	KindBadger  = "badger"
	KindRedis   = "redis"
	KindSQLite  = "sqlite"
)

// Kinds lists every supported backend kind.
var Kinds = []string{KindMemory, KindFiledir, KindBadger, KindRedis, KindSQLite}

// Config is the root configuration.
type Config struct {
	Store   ttlstash.Config `koanf:"store"`
	Backend BackendSection  `koanf:"backend"`
	Log     LogSection      `koanf:"log"`
}

// BackendSection selects and configures the persistent backend.
type BackendSection struct {
	// Kind is one of Kinds.
	Kind string `koanf:"kind"`

	// Dir is the data directory for filedir, badger and sqlite.
	Dir string `koanf:"dir"`

	Memory MemoryConfig `koanf:"memory"`
	Badger BadgerConfig `koanf:"badger"`
	Redis  RedisConfig  `koanf:"redis"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

// MemoryConfig configures the memory backend.
type MemoryConfig struct {
	// Quota in bytes; zero means unlimited.
	Quota int `koanf:"quota"`
}

// BadgerConfig configures the badger backend.
type BadgerConfig struct {
	GCInterval time.Duration `koanf:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	DB       int           `koanf:"db"`
	Password string        `koanf:"password"`
	Prefix   string        `koanf:"prefix"`
	Channel  string        `koanf:"channel"`
	Timeout  time.Duration `koanf:"timeout"`

	// TLS secures the connection; the zero value connects in plain text.
	TLS tlsroots.Options `koanf:"tls"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	// File is the database file name inside Dir.
	File         string        `koanf:"file"`
	Table        string        `koanf:"table"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
