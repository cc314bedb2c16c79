package tenancy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts plugin activity. A nil *Metrics records nothing.
type Metrics struct {
	lookups      *prometheus.CounterVec
	rewrites     *prometheus.CounterVec
	propagations *prometheus.CounterVec
}

// NewMetrics registers the plugin collectors on reg. Passing nil uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mongotenant",
				Name:      "model_cache_lookups_total",
				Help:      "Bound model lookups by result (hit or miss)",
			},
			[]string{"model", "result"},
		),
		rewrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mongotenant",
				Name:      "rewrites_total",
				Help:      "Operations rewritten to carry the bound tenant",
			},
			[]string{"model", "op"},
		),
		propagations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mongotenant",
				Name:      "propagations_total",
				Help:      "Model resolutions through a tenant-bound connection by result (bound or unbound)",
			},
			[]string{"model", "result"},
		),
	}
}

func (m *Metrics) lookup(model string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(model, result).Inc()
}

func (m *Metrics) rewrite(model, op string) {
	if m == nil {
		return
	}
	m.rewrites.WithLabelValues(model, op).Inc()
}

func (m *Metrics) propagation(model string, bound bool) {
	if m == nil {
		return
	}
	result := "unbound"
	if bound {
		result = "bound"
	}
	m.propagations.WithLabelValues(model, result).Inc()
}
