package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Suhaibinator/VRouter/pkg/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the Prometheus metrics of a router.
type Collector struct {
	registry *prometheus.Registry
	config   Config
	sampler  MetricsSampler

	requests           *prometheus.CounterVec
	latency            *prometheus.HistogramVec
	requestBytes       *prometheus.CounterVec
	errors             *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	ingestionFailures  *prometheus.CounterVec
}

// NewCollector creates a Collector registered on a fresh registry.
// Validation and ingestion counters are always registered; the request metrics
// follow the Enable flags of config.
func NewCollector(config Config) (*Collector, error) {
	return NewCollectorWithRegistry(prometheus.NewRegistry(), config)
}

// NewCollectorWithRegistry is NewCollector using an existing registry.
func NewCollectorWithRegistry(registry *prometheus.Registry, config Config) (*Collector, error) {
	rate := config.SamplingRate
	if rate == 0 {
		rate = 1
	}
	c := &Collector{
		registry: registry,
		config:   config,
		sampler:  NewRandomSampler(rate),
	}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	collectors := []prometheus.Collector{}
	if config.EnableQPS {
		c.requests = counter("http_requests_total", "Total number of HTTP requests", "route", "method", "status")
		collectors = append(collectors, c.requests)
	}
	if config.EnableLatency {
		buckets := config.LatencyBuckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		c.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   buckets,
		}, []string{"route", "method"})
		collectors = append(collectors, c.latency)
	}
	if config.EnableThroughput {
		c.requestBytes = counter("http_request_bytes_total", "Total size of HTTP request bodies in bytes", "route")
		collectors = append(collectors, c.requestBytes)
	}
	if config.EnableErrors {
		c.errors = counter("http_request_errors_total", "Total number of HTTP responses with status 400 or above", "route", "status")
		collectors = append(collectors, c.errors)
	}
	c.validationFailures = counter("validation_failures_total", "Total number of failed validation facets", "route", "facet", "status")
	c.ingestionFailures = counter("ingestion_failures_total", "Total number of request bodies that could not be read", "route", "status")
	collectors = append(collectors, c.validationFailures, c.ingestionFailures)

	for _, col := range collectors {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Registry returns the registry the collector is registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns the /metrics endpoint for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware measures requests for the named route.
func (c *Collector) Middleware(route string) common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c.config.Filter != nil && !c.config.Filter.Filter(r) {
				next.ServeHTTP(w, r)
				return
			}
			if !c.sampler.Sample() {
				next.ServeHTTP(w, r)
				return
			}

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rw, r)
			duration := time.Since(start)

			status := strconv.Itoa(rw.statusCode)
			if c.requests != nil {
				c.requests.WithLabelValues(route, r.Method, status).Inc()
			}
			if c.latency != nil {
				c.latency.WithLabelValues(route, r.Method).Observe(duration.Seconds())
			}
			if c.requestBytes != nil && r.ContentLength > 0 {
				c.requestBytes.WithLabelValues(route).Add(float64(r.ContentLength))
			}
			if c.errors != nil && rw.statusCode >= 400 {
				c.errors.WithLabelValues(route, status).Inc()
			}
		})
	}
}

// ValidationFailure counts a failed facet for route. Status 0 marks failures
// that were let through to the handler.
func (c *Collector) ValidationFailure(route, facet string, status int) {
	c.validationFailures.WithLabelValues(route, facet, strconv.Itoa(status)).Inc()
}

// IngestionFailure counts a request body that could not be read.
func (c *Collector) IngestionFailure(route string, status int) {
	c.ingestionFailures.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// responseWriter is a wrapper around http.ResponseWriter that captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// WriteHeader captures the status code and calls the underlying ResponseWriter.
func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write marks the header as written and calls the underlying ResponseWriter.
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
