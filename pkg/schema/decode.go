package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var stringMap = reflect.TypeOf(map[string]any{})

// Decode assigns a loosely typed input (maps, slices, strings, numbers) into dst,
// which must be a non-nil pointer. Struct fields are matched by their json name,
// exactly or case-insensitively, and untagged embedded structs are flattened.
// Strings are coerced into numbers, booleans, durations, RFC 3339 times and
// encoding.TextUnmarshaler fields, and single values are wrapped when a slice is
// expected, so path parameters, query strings and headers decode into typed fields.
// Numbers must fit the destination: fractions, out-of-range values and negative
// values for unsigned fields are rejected.
//
// Every problem is collected into the returned *Error.
func Decode(input any, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("schema: decode destination must be a non-nil pointer")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.DecodeHookFuncType(numberHook),
		),
	})
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return decodeIssues(err)
	}
	return nil
}

// numberHook converts strings, json.Number and other numbers into a numeric
// destination, rejecting values the destination cannot hold.
func numberHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if !isNumber(to.Kind()) {
		return data, nil
	}
	switch v := data.(type) {
	case json.Number:
		out, err := parseNumber(string(v), to)
		if err != nil && isInteger(to.Kind()) {
			// 1e3 and 2.0 are valid integers written as JSON numbers.
			if f, ferr := v.Float64(); ferr == nil {
				return convertNumber(reflect.ValueOf(f), to)
			}
		}
		return out, err
	case string:
		return parseNumber(strings.TrimSpace(v), to)
	}
	rv := reflect.ValueOf(data)
	if !rv.IsValid() || !isNumber(rv.Kind()) {
		return data, nil
	}
	return convertNumber(rv, to)
}

func parseNumber(s string, to reflect.Type) (any, error) {
	out := reflect.New(to).Elem()
	switch {
	case isSigned(to.Kind()):
		n, err := strconv.ParseInt(s, 10, to.Bits())
		if err != nil {
			return nil, fmt.Errorf("expected integer, received %q", s)
		}
		out.SetInt(n)
	case isInteger(to.Kind()):
		n, err := strconv.ParseUint(s, 10, to.Bits())
		if err != nil {
			return nil, fmt.Errorf("expected unsigned integer, received %q", s)
		}
		out.SetUint(n)
	default:
		n, err := strconv.ParseFloat(s, to.Bits())
		if err != nil {
			return nil, fmt.Errorf("expected number, received %q", s)
		}
		out.SetFloat(n)
	}
	return out.Interface(), nil
}

func convertNumber(v reflect.Value, to reflect.Type) (any, error) {
	out := reflect.New(to).Elem()
	switch {
	case isSigned(to.Kind()):
		var n int64
		switch {
		case isSigned(v.Kind()):
			n = v.Int()
		case isInteger(v.Kind()):
			if v.Uint() > math.MaxInt64 {
				return nil, fmt.Errorf("number %d overflows %s", v.Uint(), to)
			}
			n = int64(v.Uint())
		default:
			f := v.Float()
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("expected integer, received %v", f)
			}
			if f < math.MinInt64 || f >= math.MaxInt64 {
				return nil, fmt.Errorf("number %v overflows %s", f, to)
			}
			n = int64(f)
		}
		if out.OverflowInt(n) {
			return nil, fmt.Errorf("number %d overflows %s", n, to)
		}
		out.SetInt(n)

	case isInteger(to.Kind()):
		var n uint64
		switch {
		case isSigned(v.Kind()):
			if v.Int() < 0 {
				return nil, fmt.Errorf("expected unsigned integer, received %d", v.Int())
			}
			n = uint64(v.Int())
		case isInteger(v.Kind()):
			n = v.Uint()
		default:
			f := v.Float()
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("expected integer, received %v", f)
			}
			if f < 0 {
				return nil, fmt.Errorf("expected unsigned integer, received %v", f)
			}
			if f >= math.MaxUint64 {
				return nil, fmt.Errorf("number %v overflows %s", f, to)
			}
			n = uint64(f)
		}
		if out.OverflowUint(n) {
			return nil, fmt.Errorf("number %d overflows %s", n, to)
		}
		out.SetUint(n)

	default:
		var f float64
		switch {
		case isSigned(v.Kind()):
			f = float64(v.Int())
		case isInteger(v.Kind()):
			f = float64(v.Uint())
		default:
			f = v.Float()
		}
		if out.OverflowFloat(f) {
			return nil, fmt.Errorf("number %v overflows %s", f, to)
		}
		out.SetFloat(f)
	}
	return out.Interface(), nil
}

// decodeIssues splits a decoder error into one issue per failing field.
// Each line names its field in quotes, as in "'inner.when' expected ...".
func decodeIssues(err error) *Error {
	out := &Error{}
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		path, msg := splitFieldError(line)
		out.Issues = append(out.Issues, newIssue(CodeInvalidType, path, msg))
	}
	if len(out.Issues) == 0 {
		out.Issues = append(out.Issues, newIssue(CodeInvalidType, nil, err.Error()))
	}
	return out
}

func splitFieldError(line string) ([]any, string) {
	open := strings.IndexByte(line, '\'')
	if open < 0 {
		return fieldPath(""), line
	}
	end := strings.IndexByte(line[open+1:], '\'')
	if end < 0 {
		return fieldPath(""), line
	}
	name := line[open+1 : open+1+end]
	msg := strings.TrimSpace(line[open+2+end:])
	msg = strings.TrimSpace(strings.TrimPrefix(msg, ":"))
	return fieldPath(name), msg
}

// fieldPath turns "items[2].name" into ["items", 2, "name"].
func fieldPath(name string) []any {
	path := make([]any, 0, strings.Count(name, ".")+1)
	if name == "" {
		return path
	}
	for _, seg := range strings.Split(name, ".") {
		for seg != "" {
			open := strings.IndexByte(seg, '[')
			if open < 0 {
				path = append(path, seg)
				break
			}
			if open > 0 {
				path = append(path, seg[:open])
			}
			end := strings.IndexByte(seg, ']')
			if end < open {
				path = append(path, seg[open:])
				break
			}
			idx := seg[open+1 : end]
			if n, err := strconv.Atoi(idx); err == nil {
				path = append(path, n)
			} else {
				path = append(path, idx)
			}
			seg = seg[end+1:]
		}
	}
	return path
}

// lookup prefers an exact key and falls back to a case-insensitive match,
// the way the decoder resolves object keys.
func lookup(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// fieldsOf returns the exported fields of a struct (or pointer to struct) keyed
// by json name, honouring "-" and omitempty. When present is non-nil, only fields
// whose key appears in it are returned.
func fieldsOf(v any, present map[string]any) map[string]any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]any, rv.NumField())
	collectFields(rv, present, out)
	return out
}

func collectFields(rv reflect.Value, present map[string]any, out map[string]any) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitempty, skip := jsonName(f)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			collectFields(fv, present, out)
			continue
		}
		if omitempty && fv.IsZero() {
			continue
		}
		if present != nil {
			if _, ok := lookup(present, name); !ok {
				continue
			}
		}
		out[name] = fv.Interface()
	}
}

func jsonName(f reflect.StructField) (name string, omitempty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, strings.Contains(opts, "omitempty"), false
}

// toMap accepts map[string]any and any other map keyed by strings.
func toMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	if rv.Type().ConvertibleTo(stringMap) {
		return rv.Convert(stringMap).Interface().(map[string]any), true
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func isNumber(k reflect.Kind) bool {
	return isInteger(k) || k == reflect.Float32 || k == reflect.Float64
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return isSigned(k)
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case json.Number:
		return "number"
	}
	rv := reflect.ValueOf(v)
	if isNumber(rv.Kind()) {
		return "number"
	}
	return rv.Type().String()
}
