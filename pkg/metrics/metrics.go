// Package metrics provides Prometheus metrics for VRouter: request counts,
// latency, request throughput and errors per route, plus counters for rejected
// validation facets and failed body ingestion.
package metrics

import (
	"math/rand/v2"
	"net/http"
)

// MetricsFilter determines whether to collect metrics for a request
type MetricsFilter interface {
	// Filter returns true if metrics should be collected for the request
	Filter(r *http.Request) bool
}

// FilterFunc adapts a function to MetricsFilter.
type FilterFunc func(r *http.Request) bool

// Filter calls f(r).
func (f FilterFunc) Filter(r *http.Request) bool { return f(r) }

// MetricsSampler samples metrics at a given rate
type MetricsSampler interface {
	// Sample returns true if the metric should be sampled
	Sample() bool
}

// randomSampler is a simple implementation of MetricsSampler
type randomSampler struct {
	rate float64
}

// NewRandomSampler creates a new random sampler with the given rate, clamped to [0, 1].
func NewRandomSampler(rate float64) MetricsSampler {
	return &randomSampler{rate: min(max(rate, 0), 1)}
}

// Sample returns true if the metric should be sampled
func (s *randomSampler) Sample() bool {
	switch {
	case s.rate >= 1:
		return true
	case s.rate <= 0:
		return false
	}
	return rand.Float64() < s.rate
}

// Config configures a Collector.
type Config struct {
	// Namespace and Subsystem prefix every metric name.
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// EnableLatency enables the request latency histogram
	EnableLatency bool `yaml:"enable_latency"`
	// EnableThroughput enables the request bytes counter
	EnableThroughput bool `yaml:"enable_throughput"`
	// EnableQPS enables the request counter
	EnableQPS bool `yaml:"enable_qps"`
	// EnableErrors enables the error counter for 4xx and 5xx responses
	EnableErrors bool `yaml:"enable_errors"`

	// LatencyBuckets defines the buckets for the latency histogram
	LatencyBuckets []float64 `yaml:"latency_buckets"`
	// SamplingRate defines the share of requests measured (0.0-1.0). Zero means 1.0.
	SamplingRate float64 `yaml:"sampling_rate"`

	// Filter excludes requests from measurement.
	Filter MetricsFilter `yaml:"-"`
}

// DefaultConfig enables every request metric.
func DefaultConfig() Config {
	return Config{
		Namespace:        "vrouter",
		EnableLatency:    true,
		EnableThroughput: true,
		EnableQPS:        true,
		EnableErrors:     true,
		SamplingRate:     1,
	}
}
