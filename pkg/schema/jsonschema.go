package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSONSchema validates input against a JSON Schema document.
//
// Before validation, string inputs are coerced towards the declared type
// (integer, number, boolean, array), which makes the engine usable for path
// parameters, query strings and headers. Numbers are carried as json.Number so
// large integers keep their exact value. After validation the value is projected
// onto the schema: objects keep only declared properties unless
// additionalProperties allows more, anyOf/oneOf pick the first matching branch,
// and strings with format date-time or date become time.Time values.
//
// Branches of anyOf/oneOf are resolved on their own, so they cannot use $ref to
// definitions outside the branch.
type JSONSchema struct {
	root     *jsonschema.Schema
	resolved map[*jsonschema.Schema]*jsonschema.Resolved
}

// JSON resolves s and returns a schema backed by it.
func JSON(s *jsonschema.Schema) (*JSONSchema, error) {
	j := &JSONSchema{root: s, resolved: make(map[*jsonschema.Schema]*jsonschema.Resolved)}
	if err := j.resolve(s); err != nil {
		return nil, err
	}
	if err := j.resolveBranches(s); err != nil {
		return nil, err
	}
	return j, nil
}

// MustJSON is like JSON but panics if the schema cannot be resolved.
// It is intended for package-level schema declarations.
func MustJSON(s *jsonschema.Schema) *JSONSchema {
	j, err := JSON(s)
	if err != nil {
		panic(err)
	}
	return j
}

// ParseJSON decodes a JSON Schema document and returns a schema backed by it.
func ParseJSON(doc []byte) (*JSONSchema, error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("schema: decode json schema: %w", err)
	}
	return JSON(&s)
}

func (j *JSONSchema) resolve(s *jsonschema.Schema) error {
	if _, ok := j.resolved[s]; ok {
		return nil
	}
	rs, err := s.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return fmt.Errorf("schema: resolve json schema: %w", err)
	}
	j.resolved[s] = rs
	return nil
}

// resolveBranches resolves every anyOf/oneOf branch reachable from s.
func (j *JSONSchema) resolveBranches(s *jsonschema.Schema) error {
	if s == nil {
		return nil
	}
	for _, b := range branches(s) {
		if err := j.resolve(b); err != nil {
			return err
		}
	}
	children := make([]*jsonschema.Schema, 0, len(s.Properties)+len(s.AnyOf)+len(s.OneOf)+len(s.AllOf)+2)
	for _, p := range s.Properties {
		children = append(children, p)
	}
	children = append(children, s.AnyOf...)
	children = append(children, s.OneOf...)
	children = append(children, s.AllOf...)
	children = append(children, s.Items, s.AdditionalProperties)
	for _, c := range children {
		if err := j.resolveBranches(c); err != nil {
			return err
		}
	}
	return nil
}

// Parse implements Schema.
func (j *JSONSchema) Parse(_ context.Context, input any) (any, error) {
	inst, err := normalize(input)
	if err != nil {
		return nil, Errorf(CodeInvalidType, "input is not representable as JSON: %v", err)
	}
	inst = j.coerce(j.root, inst)
	if err := j.resolved[j.root].Validate(plain(inst)); err != nil {
		return nil, Errorf(CodeInvalid, "%s", err.Error())
	}
	return j.project(j.root, inst), nil
}

func (j *JSONSchema) valid(s *jsonschema.Schema, v any) bool {
	rs, ok := j.resolved[s]
	return ok && rs.Validate(plain(v)) == nil
}

// normalize turns arbitrary Go values into JSON values with json.Number numbers.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, json.Number:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// plain replaces json.Number with float64, the number type the validator understands.
func plain(v any) any {
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	}
	return v
}

func branches(s *jsonschema.Schema) []*jsonschema.Schema {
	if len(s.AnyOf) > 0 {
		return s.AnyOf
	}
	return s.OneOf
}

func types(s *jsonschema.Schema) map[string]bool {
	out := make(map[string]bool, 1+len(s.Types))
	if s.Type != "" {
		out[s.Type] = true
	}
	for _, t := range s.Types {
		out[t] = true
	}
	return out
}

func (j *JSONSchema) coerce(s *jsonschema.Schema, v any) any {
	if s == nil {
		return v
	}
	if bs := branches(s); len(bs) > 0 {
		for _, b := range bs {
			if c := j.coerce(b, v); j.valid(b, c) {
				return c
			}
		}
		return v
	}
	for _, member := range s.AllOf {
		v = j.coerce(member, v)
	}

	ts := types(s)
	switch val := v.(type) {
	case string:
		switch {
		case ts["string"]:
			return val
		case ts["integer"]:
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				return json.Number(strconv.FormatInt(n, 10))
			}
		case ts["number"]:
			if n, err := strconv.ParseFloat(val, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
				return json.Number(strconv.FormatFloat(n, 'g', -1, 64))
			}
		case ts["boolean"]:
			if b, err := strconv.ParseBool(val); err == nil {
				return b
			}
		case ts["array"]:
			return j.coerce(s, []any{val})
		}
		return val
	case []any:
		if s.Items == nil {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = j.coerce(s.Items, item)
		}
		return out
	case map[string]any:
		if len(s.Properties) == 0 {
			return val
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			if sub, ok := s.Properties[k]; ok {
				item = j.coerce(sub, item)
			}
			out[k] = item
		}
		return out
	case json.Number, bool:
		if ts["array"] {
			return j.coerce(s, []any{val})
		}
	}
	return v
}

func (j *JSONSchema) project(s *jsonschema.Schema, v any) any {
	if s == nil {
		return v
	}
	if bs := branches(s); len(bs) > 0 {
		for _, b := range bs {
			if j.valid(b, v) {
				return j.project(b, v)
			}
		}
		return v
	}

	switch val := v.(type) {
	case map[string]any:
		if s.Properties == nil && len(s.AllOf) == 0 {
			return val
		}
		out := make(map[string]any, len(s.Properties))
		for _, member := range s.AllOf {
			if m, ok := j.project(member, val).(map[string]any); ok {
				for k, item := range m {
					out[k] = item
				}
			}
		}
		for k, sub := range s.Properties {
			if item, ok := val[k]; ok {
				out[k] = j.project(sub, item)
			}
		}
		if allowsAdditional(s) {
			for k, item := range val {
				if _, ok := out[k]; !ok {
					out[k] = j.project(s.AdditionalProperties, item)
				}
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = j.project(s.Items, item)
		}
		return out
	case string:
		switch s.Format {
		case "date-time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				return t
			}
		case "date":
			if t, err := time.Parse(time.DateOnly, val); err == nil {
				return t
			}
		}
	}
	return v
}

// allowsAdditional reports whether undeclared properties survive projection.
// An absent additionalProperties keyword strips them; false strips them too.
func allowsAdditional(s *jsonschema.Schema) bool {
	ap := s.AdditionalProperties
	if ap == nil {
		return false
	}
	if raw, err := json.Marshal(ap); err == nil && string(raw) == "false" {
		return false
	}
	if ap.Not != nil {
		if raw, err := json.Marshal(ap.Not); err == nil && (string(raw) == "{}" || string(raw) == "true") {
			return false
		}
	}
	return true
}
