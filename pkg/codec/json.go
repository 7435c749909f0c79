package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// JSONCodec handles application/json.
type JSONCodec struct{}

// ContentType implements Codec.
func (c *JSONCodec) ContentType() string { return "application/json" }

// Decode reads the entire body and unmarshals a single JSON value from it.
// Numbers decode as json.Number so integers beyond 2^53 survive a round trip.
// Trailing data after the value is an error.
func (c *JSONCodec) Decode(r io.Reader) (any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("codec: decode json: %w", err)
	}
	if dec.More() {
		return nil, errors.New("codec: decode json: unexpected data after top-level value")
	}
	return data, nil
}

// Encode marshals v before touching w, so a marshal error leaves the response untouched.
// HTML characters are written as is rather than escaped.
func (c *JSONCodec) Encode(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return err
}
