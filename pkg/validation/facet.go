// Package validation provides the validation stage: a middleware that validates
// the headers, path parameters, query, body and uploaded files of a request against
// per-route schemas, writes coerced values back onto the request, and validates the
// response body the downstream handlers produced.
package validation

import "fmt"

// Facet identifies an independently validated part of a request, or the response body.
type Facet int

// Facets in reporting order.
const (
	Headers Facet = iota
	Params
	Query
	Body
	Files
	Response
)

var facetNames = [...]string{
	Headers:  "headers",
	Params:   "params",
	Query:    "query",
	Body:     "body",
	Files:    "files",
	Response: "response",
}

// String returns the wire name of the facet.
func (f Facet) String() string {
	if f < 0 || int(f) >= len(facetNames) {
		return fmt.Sprintf("Facet(%d)", int(f))
	}
	return facetNames[f]
}

// MarshalText implements encoding.TextMarshaler.
func (f Facet) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
