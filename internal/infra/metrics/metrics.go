// Package metrics exports prometheus counters for verification outcomes and
// trust-cache churn.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Prometheus struct {
	verifications *prometheus.CounterVec
	batches       *prometheus.HistogramVec
	admitted      prometheus.Counter
	revoked       prometheus.Counter
}

func New(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attestd",
			Name:      "verifications_total",
			Help:      "Report verifications by backend and result.",
		}, []string{"backend", "result"}),
		batches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "attestd",
			Name:      "batch_size",
			Help:      "Reports per aggregated batch.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}, []string{"backend"}),
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attestd",
			Name:      "certs_admitted_total",
			Help:      "Certificate fingerprints admitted into the trust cache.",
		}),
		revoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attestd",
			Name:      "certs_revoked_total",
			Help:      "Certificate fingerprints revoked from the trust cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.verifications, m.batches, m.admitted, m.revoked)
	}
	return m
}

func (m *Prometheus) ObserveVerification(backend, result string) {
	m.verifications.WithLabelValues(backend, result).Inc()
}

func (m *Prometheus) ObserveBatch(backend string, size int) {
	m.batches.WithLabelValues(backend).Observe(float64(size))
}

func (m *Prometheus) AddAdmitted(n int) {
	m.admitted.Add(float64(n))
}

func (m *Prometheus) IncRevoked() {
	m.revoked.Inc()
}
