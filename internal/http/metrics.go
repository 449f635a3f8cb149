package http

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/passbridge/internal/flow"
	"github.com/dropDatabas3/passbridge/internal/par"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	parSubmissionsTotal *prometheus.CounterVec
	flowsTotal          *prometheus.CounterVec
	flowFailuresTotal   *prometheus.CounterVec
)

// RegisterMetrics inicializa contadores HTTP y de dominio y devuelve el
// handler de /metrics.
func RegisterMetrics(registry prometheus.Registerer) (http.Handler, error) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		parSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "par_submissions_total",
			Help: "PARs enviados a la red por resultado",
		}, []string{"outcome"}) // success|no_passkey_found|unexpected

		flowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flows_total",
			Help: "Flujos iniciados por tipo",
		}, []string{"type"})

		flowFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_failures_total",
			Help: "Flujos terminados en fallo por código",
		}, []string{"code"})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			parSubmissionsTotal, flowsTotal, flowFailuresTotal,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	return promhttp.Handler(), nil
}

func registerCollector(registry prometheus.Registerer, c prometheus.Collector) error {
	if err := registry.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// WithMetrics instrumenta requests HTTP (contadores, latencia, inflight).
func WithMetrics(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	if httpRequestsTotal == nil || httpRequestDuration == nil || httpInflight == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := normalizePath(r.URL.Path)

		httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, pathLabel).Dec()
			httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()
		next.ServeHTTP(rec, r)
	})
}

var flowIDPattern = regexp.MustCompile(`/v1/flow/[^/]+`)

// normalizePath colapsa los ids de flujo para no explotar la cardinalidad.
func normalizePath(p string) string {
	return flowIDPattern.ReplaceAllString(p, "/v1/flow/{id}")
}

func observeFlowStarted(t flow.FlowType) {
	if flowsTotal != nil {
		flowsTotal.WithLabelValues(string(t)).Inc()
	}
}

func observeFlowFailure(code flow.Code) {
	if flowFailuresTotal != nil && code != "" {
		flowFailuresTotal.WithLabelValues(string(code)).Inc()
	}
}

// MetricSubmitter envuelve al cliente PAR y cuenta cada envío por resultado.
type MetricSubmitter struct {
	Next flow.Submitter
}

func (m MetricSubmitter) Submit(ctx context.Context, req *par.Request, hint string) (*par.Result, error) {
	res, err := m.Next.Submit(ctx, req, hint)
	if parSubmissionsTotal != nil && res != nil {
		parSubmissionsTotal.WithLabelValues(string(res.Outcome)).Inc()
	}
	return res, err
}
