package command

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ttlstash/internal/config"
	"github.com/yndnr/ttlstash/internal/infra/confloader"
	"github.com/yndnr/ttlstash/internal/infra/shutdown"
	"github.com/yndnr/ttlstash/internal/telemetry/logger"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print the namespace now and after every change until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address while watching",
			},
			&cli.DurationFlag{
				Name:  "sweep",
				Usage: "Also drop expired keys on this interval (0 disables)",
			},
		},
		Action: watch,
	}
}

func watch(c *cli.Context) error {
	log := getLogger(c)
	changed := make(chan struct{}, 1)
	notify := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	store, err := connect(c, false, ttlstash.WithSyncHook(notify))
	if err != nil {
		return err
	}

	handler := shutdown.NewHandler(5 * time.Second)

	if addr := c.String("metrics-addr"); addr != "" {
		srv, err := serveMetrics(c, addr)
		if err != nil {
			return err
		}
		handler.OnShutdown(srv.Shutdown)
	}

	if path := c.String("config"); path != "" {
		w, err := confloader.NewWatcher(path, confloader.WithWatcherLogger(log))
		if err != nil {
			log.Warn("configuration file not watched", "error", err)
		} else {
			w.OnChange(func(string) { reloadLogLevel(c) })
			w.StartAsync()
			handler.OnShutdown(func(context.Context) error { return w.Stop() })
		}
	}

	var ticker <-chan time.Time
	if d := c.Duration("sweep"); d > 0 {
		t := time.NewTicker(d)
		defer t.Stop()
		ticker = t.C
	}

	if err := printSnapshot(c, store); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-changed:
				if err := printSnapshot(c, store); err != nil {
					log.Error("print snapshot", "error", err)
				}
			case <-ticker:
				before := len(store.Keys())
				if err := store.Restore(); err != nil {
					log.Warn("sweep not persisted", "error", err)
				}
				if len(store.Keys()) != before {
					notify()
				}
			case <-handler.Done():
				return
			}
		}
	}()

	return handler.Wait(c.Context)
}

// absent marks keys that expired between Keys and Get.
var absent = new(struct{ _ byte })

// printSnapshot renders every live value in the namespace.
func printSnapshot(c *cli.Context, store *ttlstash.Store) error {
	snapshot := make(map[string]any)
	for _, key := range store.Keys() {
		if v := store.Get(key, absent); v != absent {
			snapshot[key] = v
		}
	}
	return render(c, snapshot)
}

func serveMetrics(c *cli.Context, addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", getMetrics(c).Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			getLogger(c).Error("metrics server stopped", "error", err)
		}
	}()
	getLogger(c).Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}

// reloadLogLevel re-reads the configuration file and applies its log level.
// Other settings need a restart.
func reloadLogLevel(c *cli.Context) {
	overrides := map[string]any{}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}
	cfg, err := config.Load(c.String("config"), overrides)
	if err != nil {
		getLogger(c).Warn("configuration reload failed", "error", err)
		return
	}
	logger.SetLevel(cfg.Log.Level)
	getLogger(c).Info("configuration reloaded", "log_level", cfg.Log.Level)
}
