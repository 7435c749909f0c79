package validation

import "github.com/Suhaibinator/VRouter/pkg/schema"

// Spec holds the schemas for a route. A nil schema leaves its facet unvalidated.
type Spec struct {
	Headers  schema.Schema
	Params   schema.Schema
	Query    schema.Schema
	Body     schema.Schema
	Files    schema.Schema
	Response schema.Schema

	// ContinueOnError lets the request through on input failures for this route
	// even when the router does not. See Invalid.
	ContinueOnError bool
}

// IsZero reports whether no facet has a schema.
func (s *Spec) IsZero() bool {
	return s == nil || (s.Headers == nil && s.Params == nil && s.Query == nil &&
		s.Body == nil && s.Files == nil && s.Response == nil)
}

type facetSchema struct {
	facet  Facet
	schema schema.Schema
}

// inputs lists the configured input schemas in facet order. The files facet is
// only validated when multipart ingestion is active.
func (s *Spec) inputs(multipart bool) []facetSchema {
	all := []facetSchema{
		{Headers, s.Headers},
		{Params, s.Params},
		{Query, s.Query},
		{Body, s.Body},
	}
	if multipart {
		all = append(all, facetSchema{Files, s.Files})
	}
	out := all[:0]
	for _, fs := range all {
		if fs.schema != nil {
			out = append(out, fs)
		}
	}
	return out
}
