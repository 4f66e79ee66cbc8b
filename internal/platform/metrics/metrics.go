package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the Prometheus collectors exported by the ledger.
// A nil *Registry is valid and records nothing.
type Registry struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	Postings      *prometheus.CounterVec
	Reversals     *prometheus.CounterVec
	AuditFailures *prometheus.CounterVec
}

// Posting outcomes used as the "result" label.
const (
	ResultPosted     = "posted"
	ResultIdempotent = "already_posted"
	ResultUnbalanced = "unbalanced"
	ResultError      = "error"
)

// NewRegistry creates the collectors and registers them with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"route"},
		),
		Postings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_postings_total",
				Help: "Post attempts by outcome",
			},
			[]string{"result"},
		),
		Reversals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_reversals_total",
				Help: "Reversals posted, by scope (entry or transaction)",
			},
			[]string{"scope"},
		),
		AuditFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_audit_write_failures_total",
				Help: "Audit events that could not be written, by action",
			},
			[]string{"action"},
		),
	}
	reg.MustRegister(r.HTTPRequests, r.HTTPDuration, r.Postings, r.Reversals, r.AuditFailures)
	return r
}

func (r *Registry) ObservePosting(result string) {
	if r == nil {
		return
	}
	r.Postings.WithLabelValues(result).Inc()
}

func (r *Registry) ObserveReversal(scope string) {
	if r == nil {
		return
	}
	r.Reversals.WithLabelValues(scope).Inc()
}

func (r *Registry) ObserveAuditFailure(action string) {
	if r == nil {
		return
	}
	r.AuditFailures.WithLabelValues(action).Inc()
}
