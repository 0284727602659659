// Package metrics exposes Prometheus counters for the licensing workflow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signalix"

// PrometheusMetrics holds the licensing counters. It satisfies both lytex.Recorder and
// billing.Recorder.
type PrometheusMetrics struct {
	GatewayRequests    *prometheus.CounterVec
	TokenRefreshes     *prometheus.CounterVec
	LicensesRegistered *prometheus.CounterVec
	ExpiredLicenses    prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewPrometheusMetrics creates and registers the counters on reg. If reg is also a
// prometheus.Gatherer, Handler serves from it.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Payment gateway requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_token_refresh_total",
			Help:      "Gateway token obtain/renew attempts by outcome.",
		}, []string{"kind", "outcome"}),
		LicensesRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licenses_registered_total",
			Help:      "License registrations by outcome (created, existing, unpaid, error).",
		}, []string{"outcome"}),
		ExpiredLicenses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licenses_expired_total",
			Help:      "Devices deactivated by the license expiry sweep.",
		}),
	}

	for _, c := range []prometheus.Collector{m.GatewayRequests, m.TokenRefreshes, m.LicensesRegistered, m.ExpiredLicenses} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m, nil
}

// GatewayRequest counts one payment gateway call by operation and outcome.
func (m *PrometheusMetrics) GatewayRequest(operation, outcome string) {
	m.GatewayRequests.WithLabelValues(operation, outcome).Inc()
}

// TokenRefresh counts a gateway token obtain or renew attempt.
func (m *PrometheusMetrics) TokenRefresh(kind, outcome string) {
	m.TokenRefreshes.WithLabelValues(kind, outcome).Inc()
}

// LicenseRegistered counts a license registration by outcome.
func (m *PrometheusMetrics) LicenseRegistered(outcome string) {
	m.LicensesRegistered.WithLabelValues(outcome).Inc()
}

// LicensesExpired adds the devices deactivated by one expiry sweep.
func (m *PrometheusMetrics) LicensesExpired(n int64) {
	if n > 0 {
		m.ExpiredLicenses.Add(float64(n))
	}
}

// Handler serves the exposition format for the registry the metrics were registered on.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
