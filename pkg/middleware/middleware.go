// Package middleware provides the HTTP middleware VRouter installs around routes:
// panic recovery, request logging, client IP extraction, trace IDs, rate limiting,
// timeouts and body size limits, plus the ingestion middleware that decodes request
// bodies and multipart forms into the request facets.
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/Suhaibinator/VRouter/pkg/common"
	"go.uber.org/zap"
)

// Use the Middleware type from the common package
type Middleware = common.Middleware

// Chain chains multiple middlewares together. The first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Recovery is a middleware that recovers from panics
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Panic recovered",
						append(requestFields(r),
							zap.Any("panic", rec),
							zap.String("stack", string(debug.Stack())),
						)...,
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Logging is a middleware that logs requests.
// Server errors are logged at Error, client errors and slow requests at Warn,
// everything else at Debug.
func Logging(logger *zap.Logger, slowThreshold time.Duration) Middleware {
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			fields := append(requestFields(r),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", duration),
			)
			switch {
			case rw.statusCode >= 500:
				logger.Error("Server error", append(fields, zap.String("remote_addr", r.RemoteAddr))...)
			case rw.statusCode >= 400:
				logger.Warn("Client error", fields...)
			case duration > slowThreshold:
				logger.Warn("Slow request", fields...)
			default:
				logger.Debug("Request", fields...)
			}
		})
	}
}

// requestFields returns the log fields shared by every request log line.
func requestFields(r *http.Request) []zap.Field {
	fields := make([]zap.Field, 0, 6)
	if traceID := GetTraceID(r); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	return append(fields,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

// MaxBodySize is a middleware that limits the size of the request body
func MaxBodySize(maxSize int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxSize > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout is a middleware that sets a timeout for the request.
// The handler writes into a buffer with its own header map, which is copied to the
// client once the handler returns. When the deadline passes first the client gets
// 408 and anything the handler writes afterwards is discarded.
func Timeout(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			tw := &timeoutWriter{h: make(http.Header)}
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if rec := recover(); rec != nil {
						panicked <- rec
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case <-done:
				tw.mu.Lock()
				defer tw.mu.Unlock()
				dst := w.Header()
				for k, vv := range tw.h {
					dst[k] = vv
				}
				if tw.code == 0 {
					tw.code = http.StatusOK
				}
				w.WriteHeader(tw.code)
				_, _ = w.Write(tw.buf.Bytes())
			case rec := <-panicked:
				panic(rec)
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				http.Error(w, "Request Timeout", http.StatusRequestTimeout)
			}
		})
	}
}

// timeoutWriter buffers the handler's response until it returns and drops
// writes once the request timed out.
type timeoutWriter struct {
	h    http.Header
	buf  bytes.Buffer
	code int

	mu       sync.Mutex
	timedOut bool
}

// Header returns the handler's own header map. It reaches the client only if the
// handler finishes in time.
func (tw *timeoutWriter) Header() http.Header { return tw.h }

// WriteHeader records the first status code written.
func (tw *timeoutWriter) WriteHeader(statusCode int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.code != 0 {
		return
	}
	tw.code = statusCode
}

// Write buffers b, or fails with http.ErrHandlerTimeout after the deadline.
func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if tw.code == 0 {
		tw.code = http.StatusOK
	}
	return tw.buf.Write(b)
}

// CORSOptions configures the CORS middleware.
type CORSOptions struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

// CORS is a middleware that adds CORS headers to the response and answers
// preflight requests with 204.
func CORS(opts CORSOptions) Middleware {
	origins := strings.Join(opts.Origins, ", ")
	methods := strings.Join(opts.Methods, ", ")
	headers := strings.Join(opts.Headers, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origins != "" {
				w.Header().Set("Access-Control-Allow-Origin", origins)
			}
			if methods != "" {
				w.Header().Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				w.Header().Set("Access-Control-Allow-Headers", headers)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter is a wrapper around http.ResponseWriter that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// WriteHeader captures the status code and calls the underlying ResponseWriter.WriteHeader
func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write calls the underlying ResponseWriter.Write
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Status returns the status code written so far, 200 if none was written.
func (rw *responseWriter) Status() int { return rw.statusCode }

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
