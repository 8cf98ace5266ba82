// Package metric provides Prometheus metrics for ttlstash.
//
// A Registry owns a private prometheus.Registry with the Go runtime and
// process collectors plus the store metrics:
//
//   - ttlstash_store_operations_total{op}
//   - ttlstash_store_expired_total
//   - ttlstash_store_restores_total
//   - ttlstash_store_save_errors_total{code}
//   - ttlstash_store_ready
//   - ttlstash_store_payload_bytes
//
// Registry implements ttlstash.Metrics, so it can be handed to a store with
// ttlstash.WithMetrics. Handler serves the registry in the text exposition
// format; Snapshot reads current values back for the CLI stats command.
package metric
