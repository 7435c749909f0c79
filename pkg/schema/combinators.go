package schema

import (
	"context"
	"mime/multipart"
	"sort"
)

// Fields maps object keys to the schema that validates them.
type Fields map[string]Schema

type objectSchema struct {
	fields Fields
	keys   []string
}

// Object validates a map key by key. Only declared keys survive into the output;
// a key absent from the input stays absent unless its schema produces a value for it.
func Object(fields Fields) Schema {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &objectSchema{fields: fields, keys: keys}
}

func (o *objectSchema) Parse(ctx context.Context, input any) (any, error) {
	m, ok := toMap(input)
	if !ok {
		return nil, Errorf(CodeInvalidType, "expected object, received %s", describe(input))
	}

	out := make(map[string]any, len(o.keys))
	var failed *Error
	for _, k := range o.keys {
		raw, present := m[k]
		v, err := o.fields[k].Parse(ctx, raw)
		if err != nil {
			if failed == nil {
				failed = &Error{}
			}
			failed.Issues = append(failed.Issues, AsError(err).prefixed(k).Issues...)
			continue
		}
		if present || v != nil {
			out[k] = v
		}
	}
	if failed != nil {
		return nil, failed
	}
	return out, nil
}

// Optional lets a missing (nil) value through untouched.
func Optional(s Schema) Schema {
	return Func(func(ctx context.Context, input any) (any, error) {
		if input == nil {
			return nil, nil
		}
		return s.Parse(ctx, input)
	})
}

// Union returns the output of the first branch that accepts the input.
// Branch order matters: with stripping schemas, the first matching branch decides
// which fields are kept.
func Union(branches ...Schema) Schema {
	return Func(func(ctx context.Context, input any) (any, error) {
		failed := &Error{Issues: []Issue{newIssue(CodeInvalidUnion, nil, "input does not match any union member")}}
		for i, b := range branches {
			v, err := b.Parse(ctx, input)
			if err == nil {
				return v, nil
			}
			failed.Issues = append(failed.Issues, AsError(err).prefixed(i).Issues...)
		}
		return nil, failed
	})
}

// File accepts a single uploaded file. A one-element list is unwrapped.
func File() Schema {
	return Func(func(_ context.Context, input any) (any, error) {
		files, ok := fileList(input)
		if !ok || len(files) == 0 {
			return nil, Errorf(CodeInvalidType, "expected file, received %s", describe(input))
		}
		if len(files) > 1 {
			return nil, Errorf(CodeInvalidType, "expected a single file, received %d", len(files))
		}
		return files[0], nil
	})
}

// Files accepts one or more uploaded files and always outputs []*multipart.FileHeader.
func Files() Schema {
	return Func(func(_ context.Context, input any) (any, error) {
		files, ok := fileList(input)
		if !ok || len(files) == 0 {
			return nil, Errorf(CodeInvalidType, "expected files, received %s", describe(input))
		}
		return files, nil
	})
}

func fileList(input any) ([]*multipart.FileHeader, bool) {
	switch v := input.(type) {
	case *multipart.FileHeader:
		if v == nil {
			return nil, false
		}
		return []*multipart.FileHeader{v}, true
	case []*multipart.FileHeader:
		return v, true
	case []any:
		out := make([]*multipart.FileHeader, 0, len(v))
		for _, item := range v {
			fh, ok := item.(*multipart.FileHeader)
			if !ok || fh == nil {
				return nil, false
			}
			out = append(out, fh)
		}
		return out, true
	}
	return nil, false
}
