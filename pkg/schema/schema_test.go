package schema

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type helloBody struct {
	Hello string `json:"hello" validate:"required"`
}

type secondBody struct {
	Second string `json:"second" validate:"required"`
}

type productParams struct {
	ID  int    `json:"id" validate:"required"`
	SKU string `json:"sku" validate:"required"`
}

func TestStructCoercesStrings(t *testing.T) {
	out, err := Struct[productParams]().Parse(context.Background(), map[string]any{"id": "1", "sku": "hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 1, "sku": "hello"}, out)
}

func TestStructRejectsBadCoercion(t *testing.T) {
	_, err := Struct[productParams]().Parse(context.Background(), map[string]any{"id": "abc", "sku": "hello"})
	require.Error(t, err)

	var se *Error
	require.True(t, errors.As(err, &se))
	require.Len(t, se.Issues, 1)
	assert.Equal(t, CodeInvalidType, se.Issues[0].Code)
	assert.Equal(t, []any{"id"}, se.Issues[0].Path)
}

func TestStructReportsValidatorIssuesByJSONName(t *testing.T) {
	_, err := Struct[productParams]().Parse(context.Background(), map[string]any{"id": "4"})
	require.Error(t, err)

	se := AsError(err)
	require.Len(t, se.Issues, 1)
	assert.Equal(t, CodeRequired, se.Issues[0].Code)
	assert.Equal(t, []any{"sku"}, se.Issues[0].Path)
}

func TestStructRejectsMissingInput(t *testing.T) {
	_, err := Struct[helloBody]().Parse(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidType, AsError(err).Issues[0].Code)
}

func TestUnionOfStructsStripsToMatchingBranch(t *testing.T) {
	s := Union(Struct[helloBody](), Struct[secondBody]())

	out, err := s.Parse(context.Background(), map[string]any{"hello": "world", "invalid": "x", "second": "y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hello": "world"}, out)

	out, err = s.Parse(context.Background(), map[string]any{"invalid": "x", "second": "should be here"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"second": "should be here"}, out)

	_, err = s.Parse(context.Background(), map[string]any{"invalid": "x"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidUnion, AsError(err).Issues[0].Code)
}

func TestJSONSchemaCoercesAndStrips(t *testing.T) {
	s, err := ParseJSON([]byte(`{
		"type": "object",
		"properties": {
			"id": {"type": "integer"},
			"active": {"type": "boolean"},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["id"]
	}`))
	require.NoError(t, err)

	out, err := s.Parse(context.Background(), map[string]any{"id": "7", "active": "true", "tags": "one", "extra": "dropped"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": json.Number("7"), "active": true, "tags": []any{"one"}}, out)

	_, err = s.Parse(context.Background(), map[string]any{"id": "seven"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalid, AsError(err).Issues[0].Code)
}

func TestJSONSchemaUnionSelectsBranch(t *testing.T) {
	s, err := ParseJSON([]byte(`{
		"anyOf": [
			{"type": "object", "properties": {"hello": {"type": "string"}}, "required": ["hello"]},
			{"type": "object", "properties": {"second": {"type": "string"}}, "required": ["second"]}
		]
	}`))
	require.NoError(t, err)

	out, err := s.Parse(context.Background(), map[string]any{"hello": "world", "invalid": "x", "second": "y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hello": "world"}, out)

	out, err = s.Parse(context.Background(), map[string]any{"invalid": "x", "second": "kept"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"second": "kept"}, out)
}

func TestJSONSchemaAdditionalPropertiesKeepsExtras(t *testing.T) {
	s, err := ParseJSON([]byte(`{
		"type": "object",
		"properties": {"a": {"type": "number"}},
		"additionalProperties": true
	}`))
	require.NoError(t, err)

	out, err := s.Parse(context.Background(), map[string]any{"a": 1, "b": "kept"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": json.Number("1"), "b": "kept"}, out)
}

func TestJSONSchemaKeepsLargeIntegers(t *testing.T) {
	s, err := ParseJSON([]byte(`{
		"type": "object",
		"properties": {"id": {"type": "integer", "minimum": 1}, "html": {"type": "string"}}
	}`))
	require.NoError(t, err)

	out, err := s.Parse(context.Background(), map[string]any{"id": json.Number("9007199254740993"), "html": "<b>"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": json.Number("9007199254740993"), "html": "<b>"}, out)

	out, err = s.Parse(context.Background(), map[string]any{"id": int64(9007199254740993)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": json.Number("9007199254740993")}, out)

	_, err = s.Parse(context.Background(), map[string]any{"id": json.Number("0")})
	require.Error(t, err)
}

func TestJSONSchemaDateTimeBecomesTime(t *testing.T) {
	s, err := ParseJSON([]byte(`{
		"type": "object",
		"properties": {"date": {"type": "string", "format": "date-time"}}
	}`))
	require.NoError(t, err)

	out, err := s.Parse(context.Background(), map[string]any{"date": "2024-05-01T10:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), out.(map[string]any)["date"])
}

func TestObjectWithFiles(t *testing.T) {
	fh := &multipart.FileHeader{Filename: "package.json"}
	s := Object(Fields{"test": File(), "many": Optional(Files())})

	out, err := s.Parse(context.Background(), map[string]any{"test": fh, "ignored": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"test": fh}, out)

	out, err = s.Parse(context.Background(), map[string]any{"test": []any{fh}, "many": fh})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"test": fh, "many": []*multipart.FileHeader{fh}}, out)

	_, err = s.Parse(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Equal(t, []any{"test"}, AsError(err).Issues[0].Path)
}

func TestDecodeIntoNestedTypes(t *testing.T) {
	type inner struct {
		When  time.Time     `json:"when"`
		Every time.Duration `json:"every"`
	}
	type target struct {
		Count  uint                  `json:"count"`
		Ratio  float64               `json:"ratio"`
		Inner  inner                 `json:"inner"`
		Names  []string              `json:"names"`
		Scores map[string]int        `json:"scores"`
		Upload *multipart.FileHeader `json:"upload"`
		Skip   string                `json:"-"`
	}
	fh := &multipart.FileHeader{Filename: "a.txt"}

	var got target
	err := Decode(map[string]any{
		"count":  "3",
		"ratio":  0.5,
		"inner":  map[string]any{"when": "2024-01-02T03:04:05Z", "every": "1m"},
		"names":  "solo",
		"scores": map[string]any{"a": float64(1), "b": "2"},
		"upload": fh,
		"Skip":   "ignored",
	}, &got)
	require.NoError(t, err)

	assert.Equal(t, uint(3), got.Count)
	assert.Equal(t, 0.5, got.Ratio)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got.Inner.When)
	assert.Equal(t, time.Minute, got.Inner.Every)
	assert.Equal(t, []string{"solo"}, got.Names)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, got.Scores)
	require.NotNil(t, got.Upload)
	assert.Equal(t, "a.txt", got.Upload.Filename)
	assert.Empty(t, got.Skip)
}

func TestDecodeCollectsEveryIssue(t *testing.T) {
	var got productParams
	err := Decode(map[string]any{"id": 1.5, "sku": []any{"a", "b"}}, &got)
	require.Error(t, err)
	assert.Len(t, AsError(err).Issues, 2)
}

func TestDecodeRejectsOutOfRangeNumbers(t *testing.T) {
	type small struct {
		N int8    `json:"n"`
		U uint8   `json:"u"`
		F float32 `json:"f"`
	}
	tests := []struct {
		name  string
		input map[string]any
		path  []any
	}{
		{"int overflow", map[string]any{"n": 300.0}, []any{"n"}},
		{"int underflow", map[string]any{"n": -129.0}, []any{"n"}},
		{"negative unsigned", map[string]any{"u": -1.0}, []any{"u"}},
		{"negative unsigned int", map[string]any{"u": -1}, []any{"u"}},
		{"unsigned overflow", map[string]any{"u": 256}, []any{"u"}},
		{"float overflow", map[string]any{"f": 1e300}, []any{"f"}},
		{"string overflow", map[string]any{"n": "300"}, []any{"n"}},
		{"negative unsigned string", map[string]any{"u": "-1"}, []any{"u"}},
		{"number overflow", map[string]any{"n": json.Number("300")}, []any{"n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got small
			err := Decode(tt.input, &got)
			require.Error(t, err)
			issues := AsError(err).Issues
			require.Len(t, issues, 1)
			assert.Equal(t, CodeInvalidType, issues[0].Code)
			assert.Equal(t, tt.path, issues[0].Path)
		})
	}

	_, err := Struct[small]().Parse(context.Background(), map[string]any{"n": 300.0, "u": -1.0})
	require.Error(t, err)
	assert.Len(t, AsError(err).Issues, 2)

	out, err := Struct[small]().Parse(context.Background(), map[string]any{"n": -128.0, "u": 255.0, "f": 1.5})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int8(-128), "u": uint8(255), "f": float32(1.5)}, out)
}

func TestDecodeKeepsLargeJSONNumbers(t *testing.T) {
	type record struct {
		ID    int64   `json:"id"`
		Count uint64  `json:"count"`
		Score float64 `json:"score"`
		Raw   any     `json:"raw"`
	}
	var got record
	err := Decode(map[string]any{
		"id":    json.Number("9007199254740993"),
		"count": json.Number("18446744073709551615"),
		"score": json.Number("0.25"),
		"raw":   json.Number("12"),
	}, &got)
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), got.ID)
	assert.Equal(t, uint64(18446744073709551615), got.Count)
	assert.Equal(t, 0.25, got.Score)
	assert.Equal(t, json.Number("12"), got.Raw)

	var whole productParams
	require.NoError(t, Decode(map[string]any{"id": json.Number("2.0"), "sku": "x"}, &whole))
	assert.Equal(t, 2, whole.ID)
}

func TestStructOutputOmitsAbsentFields(t *testing.T) {
	type page struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}
	out, err := Struct[page]().Parse(context.Background(), map[string]any{"page": "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"page": 2}, out)

	out, err = Struct[page]().Parse(context.Background(), map[string]any{"PAGE": "3", "limit": "0"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"page": 3, "limit": 0}, out)
}

func TestErrorWireShape(t *testing.T) {
	raw, err := json.Marshal(Errorf(CodeCustom, "boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"issues":[{"code":"custom","path":[],"message":"boom"}]}`, string(raw))

	se := AsError(errors.New("plain"))
	assert.Equal(t, CodeCustom, se.Issues[0].Code)
	assert.Equal(t, "plain", se.Error())
}
