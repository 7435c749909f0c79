package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

// TestTraceMiddleware tests trace ID assignment and propagation
func TestTraceMiddleware(t *testing.T) {
	var seen string
	h := TraceMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceID(r)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("Expected a UUID trace ID, got %q", seen)
	}
	if rr.Header().Get(TraceIDHeader) != seen {
		t.Errorf("Expected response header %q, got %q", seen, rr.Header().Get(TraceIDHeader))
	}

	incoming := uuid.NewString()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TraceIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != incoming {
		t.Errorf("Expected incoming trace ID %q to be kept, got %q", incoming, seen)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TraceIDHeader, "not-a-uuid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not-a-uuid" {
		t.Errorf("Expected invalid trace ID to be replaced")
	}
}

// TestGetTraceIDFromContext tests lookups on bare contexts
func TestGetTraceIDFromContext(t *testing.T) {
	if got := GetTraceIDFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty trace ID, got %q", got)
	}
	if got := GetTraceIDFromContext(WithTraceID(context.Background(), "abc")); got != "abc" {
		t.Errorf("Expected %q, got %q", "abc", got)
	}
}
