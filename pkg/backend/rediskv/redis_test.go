package rediskv

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/yndnr/ttlstash/pkg/backend/backendtest"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// redisClient starts a Redis container for the calling test and returns a
// client on it. The test is skipped when no container runtime is reachable.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	server, err := testcontainers.Run(
		ctx, "redis:latest",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, server)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}

	endpoint, err := server.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: endpoint,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

// uniquePrefix keeps subtests sharing one server apart.
func uniquePrefix() Option {
	id := ulid.MustNew(ulid.Now(), rand.Reader).String()
	return func(b *Backend) {
		b.prefix = "test:" + id + ":"
		b.channel = "test:" + id + ":changes"
	}
}

func newBackend(t *testing.T, rdb *redis.Client, opts ...Option) *Backend {
	b := New(rdb, append([]Option{WithLogger(quiet())}, opts...)...)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBackend(t *testing.T) {
	rdb := redisClient(t)

	t.Run("Conformance", func(t *testing.T) {
		backendtest.Run(t, func(t *testing.T) ttlstash.Backend {
			return newBackend(t, rdb, uniquePrefix())
		})
		backendtest.RunNotify(t, func(t *testing.T) (ttlstash.Backend, ttlstash.Backend) {
			shared := uniquePrefix()
			return newBackend(t, rdb, shared), newBackend(t, rdb, shared)
		})
	})

	t.Run("PrefixedKeys", func(t *testing.T) {
		b := newBackend(t, rdb, WithPrefix("app1:"), WithChannel("app1:changes"))
		if err := b.SetItem("k", "v"); err != nil {
			t.Fatal(err)
		}
		v, err := rdb.Get(context.Background(), "app1:k").Result()
		if err != nil || v != "v" {
			t.Errorf("raw GET = %q, %v", v, err)
		}
	})

	t.Run("IgnoresOwnWrites", func(t *testing.T) {
		b := newBackend(t, rdb, uniquePrefix())
		signals := make(chan struct{}, 1)
		if _, err := b.Subscribe(func() { signals <- struct{}{} }); err != nil {
			t.Fatal(err)
		}
		b.SetItem("k", "v")

		// A foreign message proves the subscription is live.
		rdb.Publish(context.Background(), b.channel, "someone-else k")
		select {
		case <-signals:
		case <-time.After(5 * time.Second):
			t.Fatal("foreign change not delivered")
		}

		select {
		case <-signals:
			t.Error("own write produced a notification")
		default:
		}
	})

	t.Run("Close", func(t *testing.T) {
		b := New(rdb, WithLogger(quiet()), uniquePrefix())
		if _, err := b.Subscribe(func() {}); err != nil {
			t.Fatal(err)
		}
		if err := b.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := b.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
		if _, _, err := b.GetItem("k"); !errors.Is(err, ttlstash.ErrBackendClosed) {
			t.Errorf("GetItem after Close = %v", err)
		}
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			t.Errorf("Close closed the caller's client: %v", err)
		}
	})
}

func TestErrorRules(t *testing.T) {
	b := New(nil)
	c := ttlstash.DefaultClassifier().With(b.ErrorRules()...)

	tests := []struct {
		err  error
		want ttlstash.Status
	}{
		{errors.New("OOM command not allowed when used memory > 'maxmemory'."), ttlstash.StatusQuotaExceeded},
		{errors.New("NOAUTH Authentication required."), ttlstash.StatusDisabled},
		{errors.New("READONLY You can't write against a read only replica."), ttlstash.StatusDisabled},
		{redis.ErrClosed, ttlstash.StatusDisabled},
		{errors.New("ERR unknown command"), ttlstash.StatusException},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.err).Code; got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestUnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:1",
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	defer rdb.Close()

	host := ttlstash.NewHost().Register(ttlstash.EnginePersistent, New(rdb, WithLogger(quiet())))
	s, err := ttlstash.New(host, ttlstash.WithLogger(quiet()))
	if err == nil {
		t.Fatal("New() on an unreachable server succeeded")
	}
	if s.IsReady() {
		t.Error("store reports ready")
	}
}
