package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStore(&cfg.Store); err != nil {
		return err
	}
	if err := verifyBackend(&cfg.Backend); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyStore(cfg *ttlstash.Config) error {
	if !cfg.Engine.Valid() {
		return fmt.Errorf("store.engine %q must be persistent or session", cfg.Engine)
	}
	if cfg.Namespace == "" {
		return errors.New("store.namespace is required")
	}
	return nil
}

func verifyBackend(cfg *BackendSection) error {
	if !slices.Contains(Kinds, cfg.Kind) {
		return fmt.Errorf("backend.kind %q must be one of %s", cfg.Kind, strings.Join(Kinds, ", "))
	}

	switch cfg.Kind {
	case KindFiledir, KindBadger:
		if cfg.Dir == "" {
			return fmt.Errorf("backend.dir is required for %s", cfg.Kind)
		}
	case KindSQLite:
		if cfg.Dir == "" || cfg.SQLite.File == "" {
			return errors.New("backend.dir and backend.sqlite.file are required for sqlite")
		}
		if cfg.SQLite.PollInterval <= 0 {
			return errors.New("backend.sqlite.poll_interval must be positive")
		}
	case KindRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("backend.redis.addr is required for redis")
		}
		if cfg.Redis.DB < 0 {
			return errors.New("backend.redis.db must not be negative")
		}
		if err := cfg.Redis.TLS.Validate(); err != nil {
			return fmt.Errorf("backend.redis.tls: %w", err)
		}
	case KindMemory:
		if cfg.Memory.Quota < 0 {
			return errors.New("backend.memory.quota must not be negative")
		}
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not a level", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q must be json or text", cfg.Format)
	}
	return nil
}
