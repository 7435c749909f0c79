package codec

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
)

// TestJSONCodec tests decoding and encoding with the JSONCodec
func TestJSONCodec(t *testing.T) {
	data, err := JSON.Decode(strings.NewReader(`{"name":"John","age":30,"tags":["a","b"]}`))
	if err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}

	expected := map[string]any{"name": "John", "age": json.Number("30"), "tags": []any{"a", "b"}}
	if !reflect.DeepEqual(data, expected) {
		t.Errorf("Expected %v, got %v", expected, data)
	}

	rr := httptest.NewRecorder()
	if err := JSON.Encode(rr, http.StatusCreated, map[string]any{"greeting": "Hello, John!"}); err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}
	if rr.Code != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type to be %q, got %q", "application/json", rr.Header().Get("Content-Type"))
	}
	if rr.Body.String() != `{"greeting":"Hello, John!"}` {
		t.Errorf("Expected body %q, got %q", `{"greeting":"Hello, John!"}`, rr.Body.String())
	}
}

// TestJSONCodecRoundTrip tests that large integers and HTML characters survive decode and encode
func TestJSONCodecRoundTrip(t *testing.T) {
	in := `{"html":"<b>&</b>","id":9007199254740993}`
	data, err := JSON.Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}

	rr := httptest.NewRecorder()
	if err := JSON.Encode(rr, http.StatusOK, data); err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}
	if rr.Body.String() != in {
		t.Errorf("Expected body %q, got %q", in, rr.Body.String())
	}
}

// TestJSONCodecErrors tests error handling in the JSONCodec
func TestJSONCodecErrors(t *testing.T) {
	if _, err := JSON.Decode(strings.NewReader(`{"name":"John","age":invalid}`)); err == nil {
		t.Errorf("Expected error when decoding invalid JSON")
	}

	if _, err := JSON.Decode(strings.NewReader(`{"a":1} {"b":2}`)); err == nil {
		t.Errorf("Expected error when decoding trailing data")
	}

	if _, err := JSON.Decode(&errorReader{}); err == nil {
		t.Errorf("Expected error when reading body fails")
	}

	data, err := JSON.Decode(strings.NewReader("  \n"))
	if err != nil || data != nil {
		t.Errorf("Expected empty body to decode to nil, got %v, %v", data, err)
	}

	if err := JSON.Encode(&errorResponseWriter{}, http.StatusOK, "x"); err == nil {
		t.Errorf("Expected error when writing response fails")
	}

	rr := httptest.NewRecorder()
	if err := JSON.Encode(rr, http.StatusOK, map[string]any{"channel": make(chan int)}); err == nil {
		t.Errorf("Expected error when marshaling fails")
	}
	if rr.Body.Len() != 0 || rr.Header().Get("Content-Type") != "" {
		t.Errorf("Expected untouched response after marshal error")
	}
}

// TestFormCodec tests single and repeated keys in urlencoded bodies
func TestFormCodec(t *testing.T) {
	data, err := Form.Decode(strings.NewReader("name=John&tag=a&tag=b"))
	if err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}

	expected := map[string]any{"name": "John", "tag": []any{"a", "b"}}
	if !reflect.DeepEqual(data, expected) {
		t.Errorf("Expected %v, got %v", expected, data)
	}

	if _, err := Form.Decode(strings.NewReader("a=%zz")); err == nil {
		t.Errorf("Expected error when decoding malformed form")
	}

	rr := httptest.NewRecorder()
	if err := Form.Encode(rr, http.StatusOK, map[string]any{"b": []any{"1", 2}, "a": "x"}); err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}
	if rr.Body.String() != "a=x&b=1&b=2" {
		t.Errorf("Expected body %q, got %q", "a=x&b=1&b=2", rr.Body.String())
	}

	if err := Form.Encode(httptest.NewRecorder(), http.StatusOK, 42); err == nil {
		t.Errorf("Expected error when encoding a non-map value")
	}
}

// TestValues tests flattening of url.Values
func TestValues(t *testing.T) {
	got := Values(url.Values{"one": {"1"}, "many": {"a", "b"}, "none": {}})
	expected := map[string]any{"one": "1", "many": []any{"a", "b"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

// TestTextCodec tests the TextCodec
func TestTextCodec(t *testing.T) {
	data, err := Text.Decode(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if data != "hello" {
		t.Errorf("Expected %q, got %v", "hello", data)
	}

	rr := httptest.NewRecorder()
	if err := Text.Encode(rr, http.StatusOK, 12); err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}
	if rr.Body.String() != "12" {
		t.Errorf("Expected body %q, got %q", "12", rr.Body.String())
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Expected text/plain Content-Type, got %q", rr.Header().Get("Content-Type"))
	}
}

// TestLookup tests codec selection by Content-Type
func TestLookup(t *testing.T) {
	tests := []struct {
		contentType string
		expected    Codec
		err         error
	}{
		{"application/json", JSON, nil},
		{"Application/JSON; charset=utf-8", JSON, nil},
		{"application/problem+json", JSON, nil},
		{"application/x-www-form-urlencoded", Form, nil},
		{"text/plain; charset=utf-8", Text, nil},
		{"multipart/form-data; boundary=x", nil, ErrUnsupportedMediaType},
		{"", nil, ErrUnsupportedMediaType},
		{"not a media type;;", nil, ErrUnsupportedMediaType},
	}

	for _, tt := range tests {
		c, err := Lookup(tt.contentType)
		if err != tt.err {
			t.Errorf("Lookup(%q): expected error %v, got %v", tt.contentType, tt.err, err)
		}
		if c != tt.expected {
			t.Errorf("Lookup(%q): expected codec %v, got %v", tt.contentType, tt.expected, c)
		}
	}

	if !IsJSON("application/vnd.api+json") {
		t.Errorf("Expected +json media type to be JSON")
	}
	if IsJSON("text/html") {
		t.Errorf("Expected text/html not to be JSON")
	}
}

// errorReader is a reader that always returns an error
type errorReader struct{}

func (r *errorReader) Read(p []byte) (n int, err error) {
	return 0, io.ErrUnexpectedEOF
}

// errorResponseWriter is a response writer that always returns an error
type errorResponseWriter struct {
	http.ResponseWriter
}

func (w *errorResponseWriter) Write(p []byte) (n int, err error) {
	return 0, io.ErrUnexpectedEOF
}

func (w *errorResponseWriter) Header() http.Header {
	return http.Header{}
}

func (w *errorResponseWriter) WriteHeader(statusCode int) {
	// Do nothing
}
