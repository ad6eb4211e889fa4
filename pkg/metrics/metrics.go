// Package metrics exports controller reports as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fieldwatch"

type Metrics struct {
	registry *prometheus.Registry

	reportsTotal  *prometheus.CounterVec
	severityTotal *prometheus.CounterVec
	cutoffsTotal  prometheus.Counter
	faultsTotal   *prometheus.CounterVec
	pumpActive    prometheus.Gauge
	level         *prometheus.GaugeVec
	reading       *prometheus.GaugeVec
	lastReport    *prometheus.GaugeVec

	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Total reports received by controller kind.",
		}, []string{"kind"}),
		severityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "severity_total",
			Help:      "Total reports by controller kind and overall severity.",
		}, []string{"kind", "severity"}),
		cutoffsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cutoffs_total",
			Help:      "Total industrial cycles that opened the cutoff relay.",
		}),
		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_faults_total",
			Help:      "Total cycles with a failed sensor read.",
		}, []string{"sensor"}),
		pumpActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_active",
			Help:      "Irrigation pump state (1 running, 0 stopped).",
		}),
		level: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "severity_level",
			Help:      "Last severity by controller kind (0 normal, 1 warning, 2 critical).",
		}, []string{"kind"}),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading",
			Help:      "Last sensor reading by quantity.",
		}, []string{"quantity"}),
		lastReport: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_report_timestamp_seconds",
			Help:      "Unix time of the last report by controller kind.",
		}, []string{"kind"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total latest-status cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total latest-status cache misses.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.reportsTotal,
		m.severityTotal,
		m.cutoffsTotal,
		m.faultsTotal,
		m.pumpActive,
		m.level,
		m.reading,
		m.lastReport,
		m.cacheHits,
		m.cacheMisses,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe records one report.
func (m *Metrics) Observe(r telemetry.Report) {
	if m == nil {
		return
	}

	kind := string(r.Kind)
	level := r.Level()
	m.reportsTotal.WithLabelValues(kind).Inc()
	m.severityTotal.WithLabelValues(kind, level.String()).Inc()
	m.level.WithLabelValues(kind).Set(float64(level))
	if !r.Time.IsZero() {
		m.lastReport.WithLabelValues(kind).Set(float64(r.Time.UnixNano()) / 1e9)
	}

	switch r.Kind {
	case telemetry.KindIndustrial:
		if r.Cutoff {
			m.cutoffsTotal.Inc()
		}
		if r.TemperatureFault {
			m.faultsTotal.WithLabelValues("temperature").Inc()
		} else {
			m.reading.WithLabelValues("temperature_celsius").Set(float64(r.Temperature))
		}
		m.reading.WithLabelValues("vibration_g").Set(float64(r.Vibration))
		m.reading.WithLabelValues("distance_cm").Set(float64(r.Distance))
	case telemetry.KindIrrigation:
		if r.HumidityFault() {
			m.faultsTotal.WithLabelValues("humidity").Inc()
		} else {
			m.reading.WithLabelValues("humidity_percent").Set(float64(r.Humidity))
		}
		m.reading.WithLabelValues("ph").Set(float64(r.PH))
		m.pumpActive.Set(boolGauge(r.Pump))
	}
}

// CacheHit counts a latest-status cache hit.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// CacheMiss counts a latest-status cache miss.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts and times requests to next under the route label.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
