package codec

import (
	"fmt"
	"io"
	"net/http"
)

// TextCodec handles text/plain. Bodies decode to a string.
type TextCodec struct{}

// ContentType implements Codec.
func (c *TextCodec) ContentType() string { return "text/plain" }

// Decode implements Codec.
func (c *TextCodec) Decode(r io.Reader) (any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	return string(body), nil
}

// Encode writes strings and byte slices as is and formats anything else with fmt.
func (c *TextCodec) Encode(w http.ResponseWriter, status int, v any) error {
	var body []byte
	switch s := v.(type) {
	case nil:
	case string:
		body = []byte(s)
	case []byte:
		body = s
	default:
		body = []byte(fmt.Sprint(s))
	}
	w.Header().Set("Content-Type", c.ContentType()+"; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
