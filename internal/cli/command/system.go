package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/ttlstash/internal/config"
	"github.com/yndnr/ttlstash/internal/infra/buildinfo"
)

// statusInfo summarizes the bound store.
type statusInfo struct {
	Backend   string `json:"backend" yaml:"backend"`
	Engine    string `json:"engine" yaml:"engine"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Status    string `json:"status" yaml:"status"`
	Ready     bool   `json:"ready" yaml:"ready"`
	Keys      int    `json:"keys" yaml:"keys"`
	SizeBytes int    `json:"size_bytes" yaml:"size_bytes"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// StatusCommand returns the status command. It reports degraded stores
// instead of failing on them.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the engine, status and size of the namespace",
		Action: func(c *cli.Context) error {
			store, err := connect(c, true)
			if store == nil {
				return err
			}

			info := statusInfo{
				Backend:   getConfig(c).Backend.Kind,
				Engine:    string(store.Engine()),
				Namespace: store.Namespace(),
				Status:    store.Status().String(),
				Ready:     store.IsReady(),
				Keys:      len(store.Keys()),
				SizeBytes: store.Size(),
			}
			if err != nil {
				info.Error = err.Error()
			}
			return render(c, info)
		},
	}
}

// StatsCommand returns the stats command.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Open the namespace and print the store metrics",
		Action: func(c *cli.Context) error {
			if _, err := connect(c, true); err != nil {
				return err
			}
			samples, err := getMetrics(c).Snapshot()
			if err != nil {
				return err
			}

			t := tableOf("NAME", "LABELS", "VALUE")
			for _, s := range samples {
				t.AddRow(s.Name, labelString(s.Labels), formatFloat(s.Value))
			}
			if c.String("output") == "table" {
				return render(c, t)
			}
			return render(c, samples)
		},
	}
}

// ConfigCommand returns the config command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration with credentials masked",
		Action: func(c *cli.Context) error {
			cfg := config.Sanitize(getConfig(c))
			if c.String("output") == "table" {
				return render(c, flatten(cfg))
			}
			return render(c, cfg)
		},
	}
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			return render(c, buildinfo.Get())
		},
	}
}
