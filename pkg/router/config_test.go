package router

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Suhaibinator/VRouter/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions([]byte(`
expose_request_errors: true
enable_multipart: true
global_timeout: 2s
multipart:
  max_files: 3
body_parser:
  enable_types: [json, text]
router:
  prefix: /api
  strict: true
global_rate_limit:
  bucket_name: global
  limit: 10
  window: 1m
ip:
  source: x_real_ip
  trust_proxy: true
`))
	require.NoError(t, err)

	assert.True(t, opts.ExposeRequestErrors)
	assert.True(t, opts.EnableMultipart)
	assert.Equal(t, 2*time.Second, opts.GlobalTimeout)
	assert.Equal(t, 3, opts.Multipart.MaxFiles)
	assert.Equal(t, middleware.DefaultMultipartOptions().MaxFileSize, opts.Multipart.MaxFileSize)
	assert.Equal(t, []string{"json", "text"}, opts.BodyParser.EnableTypes)
	assert.Equal(t, "/api", opts.Router.Prefix)
	assert.True(t, opts.Router.Strict)
	require.NotNil(t, opts.GlobalRateLimit)
	assert.Equal(t, time.Minute, opts.GlobalRateLimit.Window)
	assert.Equal(t, middleware.IPSourceXRealIP, opts.IPConfig.Source)
	assert.True(t, opts.IPConfig.TrustProxy)
}

func TestParseOptionsRejectsUnknownKeys(t *testing.T) {
	_, err := ParseOptions([]byte("expose_errors: true\n"))
	assert.Error(t, err)
}

func TestParseOptionsEmpty(t *testing.T) {
	opts, err := ParseOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions().BodyParser, opts.BodyParser)
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte("continue_on_error: true\n"), 0o600))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.True(t, opts.ContinueOnError)

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	opts := Options{
		BodyParser: middleware.BodyParserOptions{JSONLimit: 10},
		Router:     RouterBehavior{Prefix: "v1/"},
	}.withDefaults()

	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.OnError)
	assert.Equal(t, middleware.DefaultIPConfig(), opts.IPConfig)
	assert.Equal(t, int64(10), opts.BodyParser.JSONLimit)
	assert.Equal(t, middleware.DefaultBodyParserOptions().FormLimit, opts.BodyParser.FormLimit)
	assert.Equal(t, middleware.DefaultBodyParserOptions().EnableTypes, opts.BodyParser.EnableTypes)
	assert.Equal(t, middleware.DefaultMultipartOptions().MaxTotalSize, opts.Multipart.MaxTotalSize)
	assert.Equal(t, "/v1", opts.Router.Prefix)

	logger := zap.NewNop()
	assert.Same(t, logger, Options{Logger: logger}.withDefaults().Logger)
}

func TestEffectiveRouteOptions(t *testing.T) {
	global := &middleware.RateLimitConfig{BucketName: "global"}
	route := &middleware.RateLimitConfig{BucketName: "route"}
	opts := Options{GlobalTimeout: time.Second, GlobalMaxBodySize: 100, GlobalRateLimit: global}

	assert.Equal(t, time.Second, opts.effectiveTimeout(0))
	assert.Equal(t, time.Minute, opts.effectiveTimeout(time.Minute))
	assert.Equal(t, int64(100), opts.effectiveMaxBodySize(0))
	assert.Equal(t, int64(5), opts.effectiveMaxBodySize(5))
	assert.Same(t, global, opts.effectiveRateLimit(nil))
	assert.Same(t, route, opts.effectiveRateLimit(route))
}
