package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	estimatesTotal     *prometheus.CounterVec
	quoteTransitions   *prometheus.CounterVec
	conversionsTotal   *prometheus.CounterVec
	projectTransitions *prometheus.CounterVec
	invoiceEvents      *prometheus.CounterVec
	catalogVersion     *prometheus.GaugeVec
}

// NewMetrics initialises the registry and the engine metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteflow_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quoteflow_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	estimates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteflow_estimates_total",
		Help: "Priced selections by service type.",
	}, []string{"service_type"})
	quoteTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteflow_quote_transitions_total",
		Help: "Quote status transitions by target status.",
	}, []string{"status"})
	conversions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteflow_quote_conversions_total",
		Help: "Quote to project conversion attempts by result.",
	}, []string{"result"})
	projectTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteflow_project_transitions_total",
		Help: "Project status transitions by target status.",
	}, []string{"status"})
	invoices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteflow_invoice_events_total",
		Help: "Invoice events by kind.",
	}, []string{"event"})
	catalog := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoteflow_catalog_info",
		Help: "Active price catalog version.",
	}, []string{"version"})
	registry.MustRegister(requests, duration, estimates, quoteTransitions, conversions, projectTransitions, invoices, catalog)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		estimatesTotal:     estimates,
		quoteTransitions:   quoteTransitions,
		conversionsTotal:   conversions,
		projectTransitions: projectTransitions,
		invoiceEvents:      invoices,
		catalogVersion:     catalog,
	}
}

// Handler returns the http.Handler for /metrics.
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

// ObserveEstimate counts a priced selection.
func (m *Metrics) ObserveEstimate(serviceType string) {
	if m == nil {
		return
	}
	m.estimatesTotal.WithLabelValues(serviceType).Inc()
}

// ObserveQuoteTransition counts a quote entering status.
func (m *Metrics) ObserveQuoteTransition(status string) {
	if m == nil {
		return
	}
	m.quoteTransitions.WithLabelValues(status).Inc()
}

// ObserveConversion counts a conversion attempt outcome.
func (m *Metrics) ObserveConversion(result string) {
	if m == nil {
		return
	}
	m.conversionsTotal.WithLabelValues(result).Inc()
}

// ObserveProjectTransition counts a project entering status.
func (m *Metrics) ObserveProjectTransition(status string) {
	if m == nil {
		return
	}
	m.projectTransitions.WithLabelValues(status).Inc()
}

// ObserveInvoice counts an invoice event.
func (m *Metrics) ObserveInvoice(event string) {
	if m == nil {
		return
	}
	m.invoiceEvents.WithLabelValues(event).Inc()
}

// SetCatalogVersion marks version as the active catalog.
func (m *Metrics) SetCatalogVersion(version string) {
	if m == nil {
		return
	}
	m.catalogVersion.Reset()
	m.catalogVersion.WithLabelValues(version).Set(1)
}

// Registerer exposes the registry for custom metrics.
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
