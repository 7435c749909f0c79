package middleware

import (
	"context"
	"net/http"

	"github.com/Suhaibinator/VRouter/pkg/common"
	"github.com/google/uuid"
)

// TraceIDHeader is echoed back to the client when a trace ID is assigned.
const TraceIDHeader = "X-Trace-ID"

// traceIDKey is the key used to store the trace ID in the request context
type traceIDKey struct{}

// TraceMiddleware creates a middleware that assigns a trace ID to each request and
// adds it to the request context and the response headers. An incoming X-Trace-ID
// that parses as a UUID is kept, so traces can span services.
func TraceMiddleware() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceIDHeader)
			if _, err := uuid.Parse(traceID); err != nil {
				traceID = uuid.New().String()
			}
			w.Header().Set(TraceIDHeader, traceID)
			next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), traceID)))
		})
	}
}

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// GetTraceID extracts the trace ID from the request context.
// Returns an empty string if no trace ID is found.
func GetTraceID(r *http.Request) string {
	return GetTraceIDFromContext(r.Context())
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}
