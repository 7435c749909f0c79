package validation

import (
	"bytes"
	"net/http"

	"github.com/Suhaibinator/VRouter/pkg/codec"
	"github.com/Suhaibinator/VRouter/pkg/schema"
)

// bufferedWriter holds back everything downstream writes so the response can be
// validated before it reaches the client. Headers are written to a copy of the
// outer header map and only committed when the response is accepted.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter(w http.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{header: w.Header().Clone()}
}

// Header returns the buffered header map.
func (b *bufferedWriter) Header() http.Header { return b.header }

// WriteHeader records the first status code.
func (b *bufferedWriter) WriteHeader(statusCode int) {
	if b.status == 0 {
		b.status = statusCode
	}
}

// Write appends to the buffered body.
func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

// value decodes the buffered body. JSON bodies (or bodies without a content type
// that parse as JSON) are decoded, anything else is a string, an empty body is nil.
func (b *bufferedWriter) value() (any, bool, error) {
	if b.body.Len() == 0 {
		return nil, false, nil
	}
	ct := b.header.Get("Content-Type")
	switch {
	case codec.IsJSON(ct):
		v, err := codec.JSON.Decode(bytes.NewReader(b.body.Bytes()))
		if err != nil {
			return nil, true, schema.Errorf(schema.CodeInvalidType, "response is not valid JSON: %v", err)
		}
		return v, true, nil
	case ct == "":
		if v, err := codec.JSON.Decode(bytes.NewReader(b.body.Bytes())); err == nil {
			return v, true, nil
		}
	}
	return b.body.String(), false, nil
}

// commitHeader replaces the outer header map with the buffered one. The body is
// re-encoded, so any Content-Length set downstream is dropped.
func (b *bufferedWriter) commitHeader(w http.ResponseWriter) {
	dst := w.Header()
	for k := range dst {
		if _, ok := b.header[k]; !ok {
			delete(dst, k)
		}
	}
	for k, vs := range b.header {
		dst[k] = vs
	}
	dst.Del("Content-Length")
}
