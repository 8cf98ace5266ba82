package metric

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/yndnr/ttlstash/pkg/ttlstash"
)

const (
	namespace = "ttlstash"
	subsystem = "store"
)

// Registry holds all store metrics.
type Registry struct {
	registry *prometheus.Registry

	Operations   *prometheus.CounterVec
	Expired      prometheus.Counter
	Restores     prometheus.Counter
	SaveErrors   *prometheus.CounterVec
	Ready        prometheus.Gauge
	PayloadBytes prometheus.Gauge
}

var _ ttlstash.Metrics = (*Registry)(nil)

// NewRegistry creates a registry with every store metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Store operations by name.",
		}, []string{"op"}),
		Expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "expired_total",
			Help:      "Keys dropped because their TTL passed.",
		}),
		Restores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "restores_total",
			Help:      "Reloads of the in-memory mirror from the backend.",
		}),
		SaveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "save_errors_total",
			Help:      "Failed backend writes by status code.",
		}, []string{"code"}),
		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ready",
			Help:      "1 when the store is bound to a working backend.",
		}),
		PayloadBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payload_bytes",
			Help:      "Size of the last persisted document.",
		}),
	}
	reg.MustRegister(r.Operations, r.Expired, r.Restores, r.SaveErrors, r.Ready, r.PayloadBytes)
	return r
}

// Handler returns an HTTP handler serving the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveOperation implements ttlstash.Metrics.
func (r *Registry) ObserveOperation(op string) {
	r.Operations.WithLabelValues(op).Inc()
}

// ObserveExpired implements ttlstash.Metrics.
func (r *Registry) ObserveExpired(n int) {
	if n > 0 {
		r.Expired.Add(float64(n))
	}
}

// ObserveRestore implements ttlstash.Metrics.
func (r *Registry) ObserveRestore() {
	r.Restores.Inc()
}

// ObserveSaveError implements ttlstash.Metrics.
func (r *Registry) ObserveSaveError(code ttlstash.Status) {
	r.SaveErrors.WithLabelValues(code.String()).Inc()
}

// ObserveState implements ttlstash.Metrics.
func (r *Registry) ObserveState(status ttlstash.Status, payloadBytes int) {
	if status == ttlstash.StatusReady {
		r.Ready.Set(1)
	} else {
		r.Ready.Set(0)
	}
	if payloadBytes > 0 {
		r.PayloadBytes.Set(float64(payloadBytes))
	}
}

// Sample is one series read back from the registry.
type Sample struct {
	Name   string            `json:"name" yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Value  float64           `json:"value" yaml:"value"`
}

// Snapshot gathers the ttlstash_* series, sorted by name then labels.
func (r *Registry) Snapshot() ([]Sample, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}

	var out []Sample
	for _, mf := range families {
		name := mf.GetName()
		if len(name) < len(namespace) || name[:len(namespace)] != namespace {
			continue
		}
		for _, m := range mf.GetMetric() {
			out = append(out, Sample{
				Name:   name,
				Labels: labels(m),
				Value:  value(mf.GetType(), m),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return labelKey(out[i].Labels) < labelKey(out[j].Labels)
	})
	return out, nil
}

func labels(m *dto.Metric) map[string]string {
	if len(m.GetLabel()) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func value(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_UNTYPED:
		return m.GetUntyped().GetValue()
	default:
		return 0
	}
}

func labelKey(l map[string]string) string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		s += k + "=" + l[k] + ","
	}
	return s
}
