package validation

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Suhaibinator/VRouter/pkg/codec"
	"github.com/Suhaibinator/VRouter/pkg/schema"
	"github.com/julienschmidt/httprouter"
)

// contextKey is a type for context keys.
type contextKey string

const facetsKey contextKey = "facets"

// ErrNoFacets is returned by Bind when the request never passed through Attach.
var ErrNoFacets = errors.New("validation: request has no facets")

// Facets is the per-request view of the data the validation stage works on.
// Ingestion middleware fills Body and Files; the stage replaces raw values with
// coerced ones. It belongs to a single request and is not safe for concurrent writes.
type Facets struct {
	// Headers holds lower-cased header names; repeated values are joined with ", ".
	Headers map[string]any
	// Params holds path parameters as strings.
	Params map[string]any
	// Query holds a string per key, or []any for repeated keys.
	Query map[string]any
	// Body holds the decoded request body, nil if there is none.
	Body any
	// Files holds a *multipart.FileHeader per field, or []any for repeated fields.
	Files map[string]any

	invalid Failures
}

// Attach returns r carrying a Facets value, building one from r if needed.
// Path parameters are read from httprouter.ParamsFromContext.
func Attach(r *http.Request) (*http.Request, *Facets) {
	if f := FromRequest(r); f != nil {
		return r, f
	}
	f := newFacets(r)
	return r.WithContext(context.WithValue(r.Context(), facetsKey, f)), f
}

// FromRequest returns the facets attached to r, or nil.
func FromRequest(r *http.Request) *Facets {
	f, _ := r.Context().Value(facetsKey).(*Facets)
	return f
}

// Invalid returns the input failures that were let through because
// ContinueOnError was set. It is empty when validation passed.
func Invalid(r *http.Request) Failures {
	if f := FromRequest(r); f != nil {
		return f.invalid
	}
	return nil
}

// Bind decodes a facet of r into T using schema.Decode.
// It is typically called by handlers after the stage coerced the facet.
func Bind[T any](r *http.Request, facet Facet) (T, error) {
	var out T
	f := FromRequest(r)
	if f == nil {
		return out, ErrNoFacets
	}
	err := schema.Decode(f.Value(facet), &out)
	return out, err
}

func newFacets(r *http.Request) *Facets {
	f := &Facets{
		Headers: make(map[string]any, len(r.Header)),
		Params:  make(map[string]any),
		Query:   codec.Values(r.URL.Query()),
		Files:   make(map[string]any),
	}
	for k, vs := range r.Header {
		f.Headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	if r.Host != "" {
		if _, ok := f.Headers["host"]; !ok {
			f.Headers["host"] = r.Host
		}
	}
	for _, p := range httprouter.ParamsFromContext(r.Context()) {
		f.Params[p.Key] = p.Value
	}
	return f
}

// Value returns the current value of a facet.
func (f *Facets) Value(facet Facet) any {
	switch facet {
	case Headers:
		return f.Headers
	case Params:
		return f.Params
	case Query:
		return f.Query
	case Body:
		return f.Body
	case Files:
		return f.Files
	}
	return nil
}

// Set replaces a facet. Map facets accept map[string]any; anything else clears them.
func (f *Facets) Set(facet Facet, v any) {
	m, _ := v.(map[string]any)
	switch facet {
	case Headers:
		f.Headers = m
	case Params:
		f.Params = m
	case Query:
		f.Query = m
	case Body:
		f.Body = v
	case Files:
		f.Files = m
	}
}

// merge writes a coerced value back. Keys produced by the schema overwrite the
// raw keys; keys the schema did not return are kept.
func (f *Facets) merge(facet Facet, v any) {
	coerced, ok := v.(map[string]any)
	if !ok {
		if facet == Body {
			f.Body = v
		}
		return
	}
	var dst map[string]any
	switch facet {
	case Body:
		dst, _ = f.Body.(map[string]any)
		if dst == nil {
			dst = make(map[string]any, len(coerced))
			f.Body = dst
		}
	default:
		dst, _ = f.Value(facet).(map[string]any)
		if dst == nil {
			dst = make(map[string]any, len(coerced))
			f.Set(facet, dst)
		}
	}
	for k, item := range coerced {
		dst[k] = item
	}
}
