package command

import (
	"sort"
	"strconv"
	"strings"

	"github.com/yndnr/ttlstash/internal/cli/output"
	"github.com/yndnr/ttlstash/internal/config"
)

func tableOf(headers ...string) *output.Table {
	return &output.Table{Headers: headers}
}

func labelString(labels map[string]string) string {
	if len(labels) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + labels[k]
	}
	return strings.Join(parts, ",")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// flatten lays the configuration out as dotted keys for table output.
func flatten(cfg *config.Config) map[string]any {
	b := cfg.Backend
	return map[string]any{
		"store.engine":                 string(cfg.Store.Engine),
		"store.namespace":              cfg.Store.Namespace,
		"backend.kind":                 b.Kind,
		"backend.dir":                  b.Dir,
		"backend.memory.quota":         b.Memory.Quota,
		"backend.badger.gc_interval":   b.Badger.GCInterval.String(),
		"backend.badger.sync_writes":   b.Badger.SyncWrites,
		"backend.redis.addr":           b.Redis.Addr,
		"backend.redis.db":             b.Redis.DB,
		"backend.redis.password":       b.Redis.Password,
		"backend.redis.prefix":         b.Redis.Prefix,
		"backend.redis.channel":        b.Redis.Channel,
		"backend.redis.timeout":        b.Redis.Timeout.String(),
		"backend.redis.tls.enabled":    b.Redis.TLS.Enabled,
		"backend.redis.tls.ca_file":    b.Redis.TLS.CAFile,
		"backend.redis.tls.cert_file":  b.Redis.TLS.CertFile,
		"backend.redis.tls.key_file":   b.Redis.TLS.KeyFile,
		"backend.sqlite.file":          b.SQLite.File,
		"backend.sqlite.table":         b.SQLite.Table,
		"backend.sqlite.poll_interval": b.SQLite.PollInterval.String(),
		"log.level":                    cfg.Log.Level,
		"log.format":                   cfg.Log.Format,
	}
}
