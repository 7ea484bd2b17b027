package dispatcher

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts accepted connections by how the pipeline ended,
// mirroring the teacher's server.go request-outcome counters.
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics registers the dispatcher's counters against reg, or
// leaves them unregistered if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Accepted connections by pipeline outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests)
	}
	return m
}

func (m *Metrics) observe(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}
