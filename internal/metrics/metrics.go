package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics bundles the prometheus collectors of the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	TokenExchanges     *prometheus.CounterVec
	Sideloads          *prometheus.CounterVec
	AuthFailures       prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "badge_builder_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "badge_builder_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		TokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "badge_builder_token_exchanges_total",
			Help: "Total number of credly api key to temp token exchanges.",
		}, []string{"result"}),
		Sideloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "badge_builder_sideloads_total",
			Help: "Total number of badge images sideloaded into the media library.",
		}, []string{"result"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "badge_builder_auth_failures_total",
			Help: "Total number of rejected requests.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.TokenExchanges,
		m.Sideloads,
		m.AuthFailures,
	)

	return m
}

func Result(err error) string {
	if err != nil {
		return ResultFailure
	}

	return ResultSuccess
}

func (m *Metrics) ObserveTokenExchange(result string) {
	if m == nil {
		return
	}

	m.TokenExchanges.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSideload(result string) {
	if m == nil {
		return
	}

	m.Sideloads.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAuthFailure() {
	if m == nil {
		return
	}

	m.AuthFailures.Inc()
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := routeTemplate(r)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// path templates keep the label cardinality bounded, raw paths carry post ids
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "other"
	}

	tpl, err := route.GetPathTemplate()
	if err != nil {
		return "other"
	}

	return tpl
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
