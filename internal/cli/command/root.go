package command

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ttlstash/internal/cli/connection"
	"github.com/yndnr/ttlstash/internal/cli/output"
	"github.com/yndnr/ttlstash/internal/config"
	"github.com/yndnr/ttlstash/internal/infra/buildinfo"
	"github.com/yndnr/ttlstash/internal/telemetry/logger"
	"github.com/yndnr/ttlstash/internal/telemetry/metric"
	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

// Metadata keys.
const (
	metaConfig  = "config"
	metaLogger  = "logger"
	metaManager = "connMgr"
	metaMetrics = "metrics"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     "ttlstash",
		Usage:    "Inspect and edit expiring key-value namespaces",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			TTLCommand(),
			ExpireCommand(),
			RemoveCommand(),
			HasCommand(),
			KeysCommand(),
			ClearCommand(),
			WatchCommand(),
			ShellCommand(),
			StatusCommand(),
			StatsCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"TTLSTASH_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Backend kind: memory, filedir, badger, redis, sqlite",
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Data directory for filedir, badger and sqlite",
		},
		&cli.StringFlag{
			Name:  "redis-addr",
			Usage: "Redis address for the redis backend",
		},
		&cli.StringFlag{
			Name:    "engine",
			Aliases: []string{"e"},
			Usage:   "Storage engine: persistent or session",
		},
		&cli.StringFlag{
			Name:    "namespace",
			Aliases: []string{"n"},
			Usage:   "Namespace holding the document",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
	}
}

// flagKeys maps global flags to configuration keys.
var flagKeys = map[string]string{
	"backend":    "backend.kind",
	"dir":        "backend.dir",
	"redis-addr": "backend.redis.addr",
	"engine":     "store.engine",
	"namespace":  "store.namespace",
	"log-level":  "log.level",
}

// setup loads the configuration and prepares, without opening, the backend.
func setup(c *cli.Context) error {
	if _, err := output.ParseFormat(c.String("output")); err != nil {
		return err
	}

	overrides := map[string]any{}
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}

	cfg, err := config.Load(c.String("config"), overrides)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})

	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaLogger] = log
	c.App.Metadata[metaManager] = connection.NewManager(cfg, log)
	c.App.Metadata[metaMetrics] = metric.NewRegistry()
	return nil
}

func teardown(c *cli.Context) error {
	if mgr := GetConnectionManager(c); mgr != nil {
		return mgr.Disconnect()
	}
	return nil
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	mgr, _ := c.App.Metadata[metaManager].(*connection.Manager)
	return mgr
}

func getConfig(c *cli.Context) *config.Config {
	cfg, _ := c.App.Metadata[metaConfig].(*config.Config)
	return cfg
}

func getLogger(c *cli.Context) *slog.Logger {
	if l, ok := c.App.Metadata[metaLogger].(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func getMetrics(c *cli.Context) *metric.Registry {
	r, _ := c.App.Metadata[metaMetrics].(*metric.Registry)
	return r
}

// connect opens the store. Unless allowDegraded is set, a store that could
// not be bound to its backend is an error.
func connect(c *cli.Context, allowDegraded bool, opts ...ttlstash.Option) (*ttlstash.Store, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil, fmt.Errorf("not initialized")
	}
	if r := getMetrics(c); r != nil {
		opts = append(opts, ttlstash.WithMetrics(r))
	}

	store, err := mgr.Connect(opts...)
	if store == nil {
		return nil, err
	}
	if err != nil && !allowDegraded {
		return nil, fmt.Errorf("storage unavailable: %w", err)
	}
	return store, nil
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(c.App.Writer, data)
}
