package oauth

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts grant outcomes. A nil *Metrics is a no-op so tests and
// callers without a registry can pass nothing.
type Metrics struct {
	grants *prometheus.CounterVec
}

// NewMetrics registers the grant counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apollo",
			Subsystem: "oauth",
			Name:      "grants_total",
			Help:      "Token grant requests by grant type and result.",
		}, []string{"grant_type", "result"}),
	}
	reg.MustRegister(m.grants)
	return m
}

func (m *Metrics) observe(gt GrantType, result string) {
	if m == nil {
		return
	}
	label := string(gt)
	if label == "" {
		label = "other"
	}
	m.grants.WithLabelValues(label, result).Inc()
}
