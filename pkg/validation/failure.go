package validation

import (
	"encoding/json"
	"strings"

	"github.com/Suhaibinator/VRouter/pkg/schema"
)

// Failure records a facet that did not pass its schema.
type Failure struct {
	Facet Facet
	Err   error
}

// MarshalJSON produces {"requestParameter": "<facet>", "error": <schema error>}.
func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RequestParameter Facet         `json:"requestParameter"`
		Error            *schema.Error `json:"error"`
	}{f.Facet, schema.AsError(f.Err)})
}

// Error implements the error interface.
func (f Failure) Error() string {
	return f.Facet.String() + ": " + schema.AsError(f.Err).Error()
}

// Unwrap returns the schema error.
func (f Failure) Unwrap() error { return f.Err }

// Failures is the ordered list of failed facets for one request.
// Order follows the Facet constants.
type Failures []Failure

// Error implements the error interface.
func (fs Failures) Error() string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Error()
	}
	return strings.Join(parts, "; ")
}

// Has reports whether facet failed.
func (fs Failures) Has(facet Facet) bool {
	for _, f := range fs {
		if f.Facet == facet {
			return true
		}
	}
	return false
}

// Facets returns the failed facets in order.
func (fs Failures) Facets() []Facet {
	out := make([]Facet, len(fs))
	for i, f := range fs {
		out[i] = f.Facet
	}
	return out
}

// ErrorBody is the JSON body of an exposed validation failure response.
type ErrorBody struct {
	Error Failures `json:"error"`
}
