// Package codec provides encoding and decoding functionality for the content types
// the router ingests and emits.
//
// Decoded values are loosely typed (map[string]any, []any, string, json.Number, bool)
// so that schemas can coerce them before handlers see them.
package codec

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Codec decodes request bodies of one content type and encodes responses in it.
type Codec interface {
	// ContentType returns the media type handled by the codec, without parameters.
	ContentType() string

	// Decode reads r to the end and returns the decoded value.
	// An empty body decodes to nil.
	Decode(r io.Reader) (any, error)

	// Encode writes v to w with the given status code and the codec's content type.
	Encode(w http.ResponseWriter, status int, v any) error
}

// ErrUnsupportedMediaType is returned by Lookup for content types without a codec.
var ErrUnsupportedMediaType = errors.New("codec: unsupported media type")

// Shared codec instances. Codecs are stateless.
var (
	JSON = &JSONCodec{}
	Form = &FormCodec{}
	Text = &TextCodec{}
)

var registry = map[string]Codec{
	JSON.ContentType(): JSON,
	Form.ContentType(): Form,
	Text.ContentType(): Text,
}

// MediaType returns the lower-cased media type of a Content-Type header value,
// or "" if the value cannot be parsed.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// Lookup returns the codec for a Content-Type header value.
// Any media type with a +json suffix is handled by the JSON codec.
func Lookup(contentType string) (Codec, error) {
	mt := MediaType(contentType)
	if c, ok := registry[mt]; ok {
		return c, nil
	}
	if strings.HasSuffix(mt, "+json") {
		return JSON, nil
	}
	return nil, ErrUnsupportedMediaType
}

// IsJSON reports whether a Content-Type header value names a JSON media type.
func IsJSON(contentType string) bool {
	mt := MediaType(contentType)
	return mt == JSON.ContentType() || strings.HasSuffix(mt, "+json")
}
