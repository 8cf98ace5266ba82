package ttlstash

import (
	"log/slog"
	"time"
)

// DefaultNamespace is the backend key a Store uses unless configured.
const DefaultNamespace = "__ttlstash__"

// Config is the construction-time configuration of a Store. Zero fields
// take the defaults from DefaultConfig.
type Config struct {
	// Engine is the requested engine. Default: EnginePersistent.
	Engine Engine `koanf:"engine"`

	// Namespace is the backend key holding the document.
	// Default: DefaultNamespace.
	Namespace string `koanf:"namespace"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Engine:    EnginePersistent,
		Namespace: DefaultNamespace,
	}
}

// merge returns c with zero fields replaced by defaults.
func (c Config) merge() Config {
	def := DefaultConfig()
	if c.Engine == "" {
		c.Engine = def.Engine
	}
	if c.Namespace == "" {
		c.Namespace = def.Namespace
	}
	return c
}

// Option configures a Store.
type Option func(*Store)

// WithConfig replaces the configuration.
func WithConfig(cfg Config) Option {
	return func(s *Store) {
		s.cfg = cfg
	}
}

// WithEngine sets the requested engine.
func WithEngine(engine Engine) Option {
	return func(s *Store) {
		s.cfg.Engine = engine
	}
}

// WithNamespace sets the namespace.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		s.cfg.Namespace = namespace
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithClassifier sets the error classifier. Backend rules are still
// consulted first.
func WithClassifier(c *Classifier) Option {
	return func(s *Store) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSyncHook registers fn to run after every restore triggered by a
// backend change notification. fn runs without the store lock held.
func WithSyncHook(fn func()) Option {
	return func(s *Store) {
		s.syncHook = fn
	}
}
