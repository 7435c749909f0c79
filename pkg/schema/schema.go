// Package schema defines the validation capability consumed by the validation stage
// and adapts real schema engines to it.
//
// A Schema parses an input value and returns either a coerced output value or an
// *Error describing every problem found. Two engines are provided: Struct, backed by
// go-playground/validator struct tags, and JSON, backed by google/jsonschema-go.
// Object, Optional, Union, File and Files compose them.
package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Schema validates and coerces a single input value.
type Schema interface {
	// Parse returns the coerced output for input, or an error. Engines return *Error
	// for validation problems; any other error is treated as a single custom issue.
	Parse(ctx context.Context, input any) (any, error)
}

// Func adapts an ordinary function to the Schema interface.
type Func func(ctx context.Context, input any) (any, error)

// Parse calls f(ctx, input).
func (f Func) Parse(ctx context.Context, input any) (any, error) {
	return f(ctx, input)
}

// Issue codes produced by this package.
const (
	CodeInvalidType  = "invalid_type"
	CodeInvalidUnion = "invalid_union"
	CodeRequired     = "required"
	CodeInvalid      = "invalid"
	CodeCustom       = "custom"
)

// Issue is one validation problem at a path inside the input.
type Issue struct {
	Code    string `json:"code"`
	Path    []any  `json:"path"`
	Message string `json:"message"`
}

// Error is the structured error returned by schemas in this package.
// It serializes as {"issues": [...]}.
type Error struct {
	Issues []Issue `json:"issues"`
}

// Errorf returns an *Error holding a single issue at the root path.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Issues: []Issue{newIssue(code, nil, fmt.Sprintf(format, args...))}}
}

func newIssue(code string, path []any, message string) Issue {
	p := make([]any, len(path))
	copy(p, path)
	return Issue{Code: code, Path: p, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "schema: validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if len(is.Path) == 0 {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", joinPath(is.Path), is.Message))
	}
	return strings.Join(parts, "; ")
}

// MarshalJSON keeps the issue list non-null.
func (e *Error) MarshalJSON() ([]byte, error) {
	issues := e.Issues
	if issues == nil {
		issues = []Issue{}
	}
	return json.Marshal(struct {
		Issues []Issue `json:"issues"`
	}{issues})
}

// prefixed returns a copy of e with seg prepended to every issue path.
func (e *Error) prefixed(seg any) *Error {
	out := &Error{Issues: make([]Issue, 0, len(e.Issues))}
	for _, is := range e.Issues {
		out.Issues = append(out.Issues, newIssue(is.Code, append([]any{seg}, is.Path...), is.Message))
	}
	return out
}

// AsError converts err into an *Error. Foreign errors become a single custom issue.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return Errorf(CodeCustom, "%s", err.Error())
}

func joinPath(path []any) string {
	var b strings.Builder
	for i, seg := range path {
		switch s := seg.(type) {
		case int:
			fmt.Fprintf(&b, "[%d]", s)
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			fmt.Fprint(&b, s)
		}
	}
	return b.String()
}
