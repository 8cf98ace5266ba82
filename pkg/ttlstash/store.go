package ttlstash

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Store is an expiring key-value store bound to one (engine, namespace)
// pair. It is safe for concurrent use.
type Store struct {
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
	classifier *Classifier
	metrics    Metrics
	syncHook   func()

	mu      sync.Mutex
	engine  Engine
	status  Status
	backend Backend
	doc     document

	// unsubscribe is guarded by subMu, never by mu: it may wait for a
	// notification goroutine that is blocked on mu.
	subMu       sync.Mutex
	unsubscribe func()
}

// New creates a store on host.
//
// Construction sequence:
//  1. merge options over DefaultConfig
//  2. if the persistent engine is requested and fails its probe, fall back
//     to the session engine with a warning
//  3. probe the final engine; on failure the store keeps the classified
//     status for its lifetime and the error is returned
//  4. restore the mirror from the backend and subscribe to changes
//
// When New returns an error the returned Store is still usable in
// memory-only mode.
func New(host *Host, opts ...Option) (*Store, error) {
	s := &Store{
		logger:     slog.Default(),
		now:        time.Now,
		classifier: DefaultClassifier(),
		metrics:    nopMetrics{},
		doc:        newDocument(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.merge()
	s.engine = s.cfg.Engine
	s.logger = s.logger.With("namespace", s.cfg.Namespace)

	prober := Prober{Classifier: s.classifier, Now: s.now}

	if s.engine == EnginePersistent {
		if r := prober.Probe(host, s.engine); !r.OK() {
			s.logger.Warn("persistent storage unavailable, falling back to session storage",
				"status", r.Status(),
				"error", r.Err)
			s.engine = EngineSession
		}
	}

	if r := prober.Probe(host, s.engine); !r.OK() {
		s.status = r.Status()
		s.metrics.ObserveState(s.status, 0)
		s.logger.Error("storage unavailable",
			"engine", s.engine,
			"status", s.status,
			"error", r.Err)
		return s, r.Err
	}

	s.status = StatusReady
	s.backend, _ = host.Lookup(s.engine)
	s.classifier = s.classifier.forBackend(s.backend)

	if err := s.Restore(); err != nil {
		s.logger.Warn("initial sweep could not be persisted", "error", err)
	}
	if err := s.Resubscribe(); err != nil {
		s.logger.Warn("change notifications unavailable", "error", err)
	}

	s.logger.Debug("store ready", "engine", s.engine)
	return s, nil
}

// Engine returns the engine actually in use, after any fallback.
func (s *Store) Engine() Engine {
	return s.engine
}

// Namespace returns the backend key holding the document.
func (s *Store) Namespace() string {
	return s.cfg.Namespace
}

// Status returns the store status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsReady reports whether mutations are persisted.
func (s *Store) IsReady() bool {
	return s.Status() == StatusReady
}

// Size returns the byte length of the payload currently stored in the
// backend, or 0 when the store is not ready.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.source())
}

// Get returns a fresh copy of the value under key, or def when the key is
// absent or expired. Reading an expired key removes it.
//
// Values come back in the generic JSON shape: objects as map[string]any,
// arrays as []any, numbers as float64. Use GetInto or Lookup for typed
// reads.
func (s *Store) Get(key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ObserveOperation("get")

	raw, ok := s.lookup(key)
	if !ok {
		return def
	}
	return decodeValue(raw)
}

// GetInto decodes the value under key into dst. found is false when the key
// is absent or expired; dst is left untouched then.
func (s *Store) GetInto(key string, dst any) (found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ObserveOperation("get")

	raw, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

// Lookup returns the value under key decoded as T, or def when the key is
// absent, expired, or not decodable as T.
func Lookup[T any](s *Store, key string, def T) T {
	var v T
	found, err := s.GetInto(key, &v)
	if !found || err != nil {
		return def
	}
	return v
}

// HasKey reports whether key is present. Expired keys count as present until
// they are read or swept.
func (s *Store) HasKey(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.doc.Values[key]
	return ok
}

// Keys returns the present keys in sorted order, expired ones included.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.keys()
}

// Set stores a copy of value under key with an optional ttl (nil: never
// expires). A nil value removes the key.
//
// The returned error reports persistence failures only; the in-memory value
// is updated regardless.
func (s *Store) Set(key string, value any, ttl TTL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ObserveOperation("set")

	if value == nil {
		return s.remove(key)
	}

	raw, err := encodeValue(value)
	if err != nil {
		s.logger.Warn("value is not representable as JSON, storing null",
			"key", key,
			"error", err)
	}
	s.doc.Values[key] = raw
	return s.setTTL(key, ttl)
}

// GetTTL returns the expiry of key in Unix milliseconds. ok is false when
// the key has no expiry.
func (s *Store) GetTTL(key string) (ms int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiry(key)
}

// SetTTL sets or clears (nil, Seconds(0)) the expiry of key. It is a no-op
// when the key is absent.
func (s *Store) SetTTL(key string, ttl TTL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ObserveOperation("set_ttl")
	return s.setTTL(key, ttl)
}

// Remove deletes key and its expiry.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ObserveOperation("remove")
	return s.remove(key)
}

// Clear deletes every key. When ready the backend entry is removed; the
// mirror is emptied in every case.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ObserveOperation("clear")

	s.doc = newDocument()
	if s.status != StatusReady {
		return nil
	}

	err := guard(func() error {
		return s.backend.RemoveItem(s.cfg.Namespace)
	})
	if err != nil {
		classified := s.classifier.Classify(err)
		s.logger.Warn("clear failed", "status", classified.Code, "error", err)
		s.metrics.ObserveSaveError(classified.Code)
		return classified
	}
	s.metrics.ObserveState(s.status, 0)
	return nil
}

// Restore reloads the mirror from the backend, then drops expired keys.
// Missing or malformed payloads reset the mirror to empty. When the store
// is not ready the backend is not read and only the sweep runs.
//
// The returned error reports a failure to persist the sweep.
func (s *Store) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restore()
}

func (s *Store) restore() error {
	if s.status == StatusReady {
		s.doc = parseDocument(s.source())
		s.metrics.ObserveRestore()
	}
	return s.sweep()
}

// sweep drops every key whose expiry has passed and persists the result if
// anything changed.
func (s *Store) sweep() error {
	now := s.now().UnixMilli()
	removed := 0
	for key, v := range s.doc.TTL {
		at, ok := decodeExpiry(v)
		if !ok || at >= now {
			continue
		}
		delete(s.doc.Values, key)
		delete(s.doc.TTL, key)
		removed++
	}
	if removed == 0 {
		return nil
	}

	s.metrics.ObserveExpired(removed)
	s.logger.Debug("expired keys swept", "count", removed)
	if s.status != StatusReady {
		return nil
	}
	return s.save()
}

// lookup returns the raw value for key, removing it first if expired.
func (s *Store) lookup(key string) (json.RawMessage, bool) {
	if at, ok := s.expiry(key); ok && at < s.now().UnixMilli() {
		if err := s.remove(key); err != nil {
			s.logger.Warn("expired key removal not persisted", "key", key, "error", err)
		}
		s.metrics.ObserveExpired(1)
		return nil, false
	}
	raw, ok := s.doc.Values[key]
	return raw, ok
}

func (s *Store) expiry(key string) (int64, bool) {
	v, ok := s.doc.TTL[key]
	if !ok {
		return 0, false
	}
	return decodeExpiry(v)
}

func (s *Store) setTTL(key string, ttl TTL) error {
	if _, ok := s.doc.Values[key]; !ok {
		return nil
	}

	if ttl == nil {
		delete(s.doc.TTL, key)
		return s.save()
	}
	at, ok := ttl.ExpiresAt(s.now())
	if !ok {
		delete(s.doc.TTL, key)
		return s.save()
	}

	s.doc.TTL[key] = encodeExpiry(at)
	return s.save()
}

func (s *Store) remove(key string) error {
	delete(s.doc.Values, key)
	delete(s.doc.TTL, key)
	return s.save()
}

// save writes the mirror to the backend. It is a no-op unless ready.
func (s *Store) save() error {
	if s.status != StatusReady {
		return nil
	}

	payload, err := s.doc.encode()
	if err == nil {
		err = guard(func() error {
			return s.backend.SetItem(s.cfg.Namespace, payload)
		})
	}
	if err != nil {
		classified := s.classifier.Classify(err)
		s.logger.Warn("save failed", "status", classified.Code, "error", err)
		s.metrics.ObserveSaveError(classified.Code)
		return classified
	}

	s.metrics.ObserveState(s.status, len(payload))
	return nil
}

// source returns the current backend payload, or "" when unavailable.
func (s *Store) source() string {
	if s.status != StatusReady || s.backend == nil {
		return ""
	}
	var payload string
	err := guard(func() error {
		v, ok, err := s.backend.GetItem(s.cfg.Namespace)
		if ok {
			payload = v
		}
		return err
	})
	if err != nil {
		s.logger.Debug("read failed", "error", err)
		return ""
	}
	return payload
}
