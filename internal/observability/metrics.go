// Package observability collects Prometheus metrics for the engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics registers and serves the application metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	recomputes      *prometheus.CounterVec
	templateApplies *prometheus.CounterVec
	approvals       prometheus.Counter
	changeOrderFold prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	recomputes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_totals_recomputes_total",
		Help: "Totals recomputations by owner kind (quotation or change_order).",
	}, []string{"owner"})
	templateApplies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_template_applies_total",
		Help: "Template applications by mode (merge or replace).",
	}, []string{"mode"})
	approvals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_quotation_approvals_total",
		Help: "Quotation approvals with snapshot taken.",
	})
	folds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_change_order_folds_total",
		Help: "Revised-total folds after change order approval or deletion.",
	})
	registry.MustRegister(requests, duration, recomputes, templateApplies, approvals, folds)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		recomputes:      recomputes,
		templateApplies: templateApplies,
		approvals:       approvals,
		changeOrderFold: folds,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// IncRecompute counts a totals recomputation for the given owner kind.
func (m *Metrics) IncRecompute(owner string) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(owner).Inc()
}

// IncTemplateApply counts a template application in the given mode.
func (m *Metrics) IncTemplateApply(mode string) {
	if m == nil {
		return
	}
	m.templateApplies.WithLabelValues(mode).Inc()
}

// IncApproval counts a completed quotation approval.
func (m *Metrics) IncApproval() {
	if m == nil {
		return
	}
	m.approvals.Inc()
}

// IncChangeOrderFold counts a revised-total fold.
func (m *Metrics) IncChangeOrderFold() {
	if m == nil {
		return
	}
	m.changeOrderFold.Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
