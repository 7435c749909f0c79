// Package router binds HTTP method and path registration to schema validation.
// Each route compiles its ingestion, pre-handlers, validation stage and handlers
// into a single chain that is installed on github.com/julienschmidt/httprouter.
package router

import (
	"net/http"
	"time"

	"github.com/Suhaibinator/VRouter/pkg/common"
	"github.com/Suhaibinator/VRouter/pkg/metrics"
	"github.com/Suhaibinator/VRouter/pkg/middleware"
	"go.uber.org/zap"
)

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware

// Options is the router configuration. It is read once by NewRouter, which fills
// in defaults; request handling never consults unset values.
type Options struct {
	// ExposeRequestErrors includes the failed facets in 400 responses.
	ExposeRequestErrors bool `yaml:"expose_request_errors"`
	// ExposeResponseErrors includes the response failure in 500 responses.
	ExposeResponseErrors bool `yaml:"expose_response_errors"`
	// ContinueOnError passes requests with invalid input on to the handlers,
	// which read the failures with validation.Invalid.
	ContinueOnError bool `yaml:"continue_on_error"`
	// EnableMultipart installs multipart ingestion and validation of the files facet.
	EnableMultipart bool `yaml:"enable_multipart"`

	// Multipart configures multipart ingestion. Zero fields take the values of
	// middleware.DefaultMultipartOptions.
	Multipart middleware.MultipartOptions `yaml:"multipart"`
	// BodyParser configures body decoding. Zero fields take the values of
	// middleware.DefaultBodyParserOptions.
	BodyParser middleware.BodyParserOptions `yaml:"body_parser"`
	// Router configures the underlying httprouter.
	Router RouterBehavior `yaml:"router"`

	IPConfig             *middleware.IPConfig        `yaml:"ip"`
	EnableTraceID        bool                        `yaml:"enable_trace_id"`
	LogRequests          bool                        `yaml:"log_requests"`
	SlowRequestThreshold time.Duration               `yaml:"slow_request_threshold"`
	GlobalTimeout        time.Duration               `yaml:"global_timeout"`
	GlobalMaxBodySize    int64                       `yaml:"global_max_body_size"`
	GlobalRateLimit      *middleware.RateLimitConfig `yaml:"global_rate_limit"`

	// CORS adds CORS headers to every route and answers preflight requests.
	CORS *middleware.CORSOptions `yaml:"cors"`

	// Logger defaults to zap.NewProduction.
	Logger *zap.Logger `yaml:"-"`
	// Metrics, when set, measures every route and counts rejected requests.
	Metrics *metrics.Collector `yaml:"-"`
	// Middlewares wrap every route, inside logging and metrics.
	Middlewares []Middleware `yaml:"-"`
	// OnError observes rejected requests: validation.Failures for validation
	// and *middleware.IngestionError for unreadable bodies.
	OnError func(r *http.Request, err error) `yaml:"-"`
}

// RouterBehavior holds the options passed through to httprouter.
type RouterBehavior struct {
	// Prefix is prepended to every route path registered after construction.
	Prefix string `yaml:"prefix"`
	// Strict disables the redirect between paths with and without a trailing slash.
	Strict bool `yaml:"strict"`
	// Sensitive disables the case-insensitive fixed path redirect.
	Sensitive bool `yaml:"sensitive"`
	// DisableMethodNotAllowed answers 404 instead of 405 for known paths.
	DisableMethodNotAllowed bool `yaml:"disable_method_not_allowed"`
	// DisableAutoOptions stops answering OPTIONS requests automatically.
	DisableAutoOptions bool `yaml:"disable_auto_options"`

	NotFound         http.Handler `yaml:"-"`
	MethodNotAllowed http.Handler `yaml:"-"`
}

// RouteOptions are per-route overrides.
type RouteOptions struct {
	// Name overrides RouteSpec.Name.
	Name string `yaml:"name"`
	// Timeout overrides Options.GlobalTimeout.
	Timeout time.Duration `yaml:"timeout"`
	// MaxBodySize overrides Options.GlobalMaxBodySize.
	MaxBodySize int64 `yaml:"max_body_size"`
	// RateLimit overrides Options.GlobalRateLimit.
	RateLimit *middleware.RateLimitConfig `yaml:"rate_limit"`
}

// DefaultOptions returns Options with every default filled in.
func DefaultOptions() Options {
	return Options{
		Multipart:            middleware.DefaultMultipartOptions(),
		BodyParser:           middleware.DefaultBodyParserOptions(),
		IPConfig:             middleware.DefaultIPConfig(),
		SlowRequestThreshold: time.Second,
	}
}

// withDefaults returns o with every unset field resolved.
func (o Options) withDefaults() Options {
	d := DefaultOptions()

	if o.Logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		o.Logger = logger
	}
	if o.IPConfig == nil {
		o.IPConfig = d.IPConfig
	}
	if o.SlowRequestThreshold <= 0 {
		o.SlowRequestThreshold = d.SlowRequestThreshold
	}
	if o.OnError == nil {
		o.OnError = func(*http.Request, error) {}
	}

	bp := &o.BodyParser
	if bp.EnableTypes == nil {
		bp.EnableTypes = d.BodyParser.EnableTypes
	}
	bp.JSONLimit = orDefault(bp.JSONLimit, d.BodyParser.JSONLimit)
	bp.FormLimit = orDefault(bp.FormLimit, d.BodyParser.FormLimit)
	bp.TextLimit = orDefault(bp.TextLimit, d.BodyParser.TextLimit)

	mp := &o.Multipart
	mp.MaxMemory = orDefault(mp.MaxMemory, d.Multipart.MaxMemory)
	mp.MaxFields = orDefault(mp.MaxFields, d.Multipart.MaxFields)
	mp.MaxFieldsSize = orDefault(mp.MaxFieldsSize, d.Multipart.MaxFieldsSize)
	mp.MaxFileSize = orDefault(mp.MaxFileSize, d.Multipart.MaxFileSize)
	mp.MaxTotalSize = orDefault(mp.MaxTotalSize, d.Multipart.MaxTotalSize)

	o.Router.Prefix = cleanPrefix(o.Router.Prefix)
	return o
}

func orDefault[T int | int64](v, d T) T {
	if v == 0 {
		return d
	}
	return v
}

// effectiveTimeout returns the route timeout, falling back to the global one.
func (o Options) effectiveTimeout(route time.Duration) time.Duration {
	if route > 0 {
		return route
	}
	return o.GlobalTimeout
}

// effectiveMaxBodySize returns the route body limit, falling back to the global one.
func (o Options) effectiveMaxBodySize(route int64) int64 {
	if route > 0 {
		return route
	}
	return o.GlobalMaxBodySize
}

// effectiveRateLimit returns the route rate limit, falling back to the global one.
func (o Options) effectiveRateLimit(route *middleware.RateLimitConfig) *middleware.RateLimitConfig {
	if route != nil {
		return route
	}
	return o.GlobalRateLimit
}
