package schema

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// defaultValidator reports field names by their json tag so issue paths line up
// with the keys clients actually send.
var defaultValidator = NewValidator()

// NewValidator returns a validator configured the way Struct schemas expect.
// Use it as a starting point when registering custom validation tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, skip := jsonName(f)
		if skip {
			return ""
		}
		return name
	})
	return v
}

// StructSchema validates input by decoding it into T and running struct-tag validation.
// Its output is a map of T's fields keyed by json name, so fields not declared on T
// are dropped and declared fields carry their typed, coerced values. Only fields
// whose key was present in the input appear in the output; absent fields are not
// filled in with zero values.
type StructSchema[T any] struct {
	validate *validator.Validate
}

// Struct returns a schema for the struct type T using the default validator.
//
//	type params struct {
//	    ID  int    `json:"id" validate:"required"`
//	    SKU string `json:"sku" validate:"required"`
//	}
//	schema.Struct[params]()
func Struct[T any]() *StructSchema[T] {
	return &StructSchema[T]{validate: defaultValidator}
}

// StructWith is Struct with a caller-supplied validator instance.
func StructWith[T any](v *validator.Validate) *StructSchema[T] {
	return &StructSchema[T]{validate: v}
}

// Parse implements Schema.
func (s *StructSchema[T]) Parse(ctx context.Context, input any) (any, error) {
	value, err := s.Decode(ctx, input)
	if err != nil {
		return nil, err
	}
	present, _ := toMap(input)
	return fieldsOf(&value, present), nil
}

// Decode is Parse without the conversion back to a map.
func (s *StructSchema[T]) Decode(ctx context.Context, input any) (T, error) {
	var out T
	if input == nil {
		return out, Errorf(CodeInvalidType, "expected object, received undefined")
	}
	if err := Decode(input, &out); err != nil {
		return out, err
	}
	if err := s.validate.StructCtx(ctx, &out); err != nil {
		return out, fromValidator(err)
	}
	return out, nil
}

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return AsError(err)
	}
	out := &Error{Issues: make([]Issue, 0, len(verrs))}
	for _, fe := range verrs {
		code := fe.Tag()
		if code == "required" {
			code = CodeRequired
		}
		out.Issues = append(out.Issues, newIssue(code, namespacePath(fe.Namespace()), fe.Error()))
	}
	return out
}

// namespacePath turns "Params.items[2].name" into ["items", 2, "name"],
// dropping the leading struct type name.
func namespacePath(ns string) []any {
	_, rest, _ := strings.Cut(ns, ".")
	return fieldPath(rest)
}
