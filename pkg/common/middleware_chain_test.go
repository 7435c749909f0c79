package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareChainOrder(t *testing.T) {
	var order []string
	record := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}

	chain := NewMiddlewareChain(record("second")).Prepend(record("first")).Append(record("third"))

	handler := chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "final")
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/foo", nil))

	expected := []string{
		"first-before", "second-before", "third-before",
		"final",
		"third-after", "second-after", "first-after",
	}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected call %d to be %q, got %q", i, v, order[i])
		}
	}
}

func TestMiddlewareChainAppendDoesNotAlias(t *testing.T) {
	base := make(MiddlewareChain, 0, 4)
	base = base.Append(func(next http.Handler) http.Handler { return next })

	a := base.Append(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Chain", "a")
			next.ServeHTTP(w, r)
		})
	})
	b := base.Append(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Chain", "b")
			next.ServeHTTP(w, r)
		})
	})

	w := httptest.NewRecorder()
	a.Then(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("X-Chain"); got != "a" {
		t.Errorf("Expected X-Chain header to be %q, got %q", "a", got)
	}

	w = httptest.NewRecorder()
	b.Then(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("X-Chain"); got != "b" {
		t.Errorf("Expected X-Chain header to be %q, got %q", "b", got)
	}
}

func TestEmptyMiddlewareChain(t *testing.T) {
	handler := NewMiddlewareChain().Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/foo", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body %q, got %q", "OK", w.Body.String())
	}
}
