// Package rediskv provides a backend on Redis.
//
// Items are plain string keys under a prefix. Every write publishes the
// writer's origin on a Pub/Sub channel; backends in other processes (or
// other handles in this one) turn those messages into change notifications.
// A handle ignores the messages it published itself.
package rediskv

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yndnr/ttlstash/pkg/backend/notify"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// Default configuration values.
const (
	DefaultPrefix  = "ttlstash:"
	DefaultChannel = "ttlstash:changes"
	DefaultTimeout = 5 * time.Second
)

// Option configures a Backend.
type Option func(*Backend)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(b *Backend) {
		b.prefix = prefix
	}
}

// WithChannel sets the Pub/Sub channel used for change notifications.
func WithChannel(channel string) Option {
	return func(b *Backend) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithTimeout bounds every Redis round trip.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Backend implements ttlstash.Backend on a Redis client. The client is owned
// by the caller; Close does not close it.
type Backend struct {
	rdb     *redis.Client
	prefix  string
	channel string
	timeout time.Duration
	origin  string
	logger  *slog.Logger
	fanout  notify.Fanout
	closed  atomic.Bool

	subOnce sync.Once
	subErr  error
	pubsub  *redis.PubSub
	subDone chan struct{}
}

// New creates a backend on rdb.
func New(rdb *redis.Client, opts ...Option) *Backend {
	b := &Backend{
		rdb:     rdb,
		prefix:  DefaultPrefix,
		channel: DefaultChannel,
		timeout: DefaultTimeout,
		origin:  ulid.MustNew(ulid.Now(), rand.Reader).String(),
		logger:  slog.Default(),
		subDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}

// GetItem implements ttlstash.Backend.
func (b *Backend) GetItem(key string) (string, bool, error) {
	if b.closed.Load() {
		return "", false, ttlstash.ErrBackendClosed
	}
	ctx, cancel := b.ctx()
	defer cancel()

	v, err := b.rdb.Get(ctx, b.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetItem implements ttlstash.Backend.
func (b *Backend) SetItem(key, value string) error {
	if b.closed.Load() {
		return ttlstash.ErrBackendClosed
	}
	ctx, cancel := b.ctx()
	defer cancel()

	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.prefix+key, value, 0)
		pipe.Publish(ctx, b.channel, b.message(key))
		return nil
	})
	return err
}

// RemoveItem implements ttlstash.Backend.
func (b *Backend) RemoveItem(key string) error {
	if b.closed.Load() {
		return ttlstash.ErrBackendClosed
	}
	ctx, cancel := b.ctx()
	defer cancel()

	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.prefix+key)
		pipe.Publish(ctx, b.channel, b.message(key))
		return nil
	})
	return err
}

// Len implements ttlstash.Backend. It scans the prefix, so it is linear in
// the number of matching keys.
func (b *Backend) Len() (int, error) {
	if b.closed.Load() {
		return 0, ttlstash.ErrBackendClosed
	}
	ctx, cancel := b.ctx()
	defer cancel()

	n := 0
	iter := b.rdb.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return n, nil
}

// Subscribe implements ttlstash.Backend.
func (b *Backend) Subscribe(fn func()) (func(), error) {
	if b.closed.Load() {
		return nil, ttlstash.ErrBackendClosed
	}
	b.subOnce.Do(func() {
		b.subErr = b.startSubscription()
	})
	if b.subErr != nil {
		return nil, b.subErr
	}
	return b.fanout.Subscribe(fn), nil
}

func (b *Backend) startSubscription() error {
	ctx, cancel := b.ctx()
	defer cancel()

	pubsub := b.rdb.Subscribe(context.Background(), b.channel)
	// Wait for the confirmation so no change published after Subscribe
	// returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		close(b.subDone)
		return fmt.Errorf("rediskv: subscribe %s: %w", b.channel, err)
	}
	b.pubsub = pubsub

	go func() {
		defer close(b.subDone)
		for msg := range pubsub.Channel() {
			if origin, _, _ := strings.Cut(msg.Payload, " "); origin == b.origin {
				continue
			}
			b.fanout.Notify()
		}
	}()
	return nil
}

// message encodes a change announcement: "<origin> <key>".
func (b *Backend) message(key string) string {
	return b.origin + " " + key
}

// ErrorRules implements ttlstash.RuleProvider.
func (b *Backend) ErrorRules() []ttlstash.Rule {
	return []ttlstash.Rule{
		{
			Name:    "redis-oom",
			Match:   ttlstash.MatchPrefix("OOM "),
			Code:    ttlstash.StatusQuotaExceeded,
			Message: ttlstash.ErrQuotaExceeded.Message,
		},
		{
			Name:    "redis-denied",
			Match:   ttlstash.MatchPrefix("NOAUTH ", "NOPERM ", "WRONGPASS ", "READONLY "),
			Code:    ttlstash.StatusDisabled,
			Message: ttlstash.ErrDisabled.Message,
		},
		{
			Name:    "redis-closed",
			Match:   ttlstash.MatchIs(redis.ErrClosed),
			Code:    ttlstash.StatusDisabled,
			Message: ttlstash.ErrDisabled.Message,
		},
	}
}

// Close cancels the Pub/Sub subscription and every store subscription.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.fanout.Close()

	b.subOnce.Do(func() { close(b.subDone) })
	var err error
	if b.pubsub != nil {
		err = b.pubsub.Close()
	}
	<-b.subDone
	return err
}
