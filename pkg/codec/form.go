package codec

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
)

// FormCodec handles application/x-www-form-urlencoded.
type FormCodec struct{}

// ContentType implements Codec.
func (c *FormCodec) ContentType() string { return "application/x-www-form-urlencoded" }

// Decode parses the body as a query string and returns it in the shape produced by Values.
func (c *FormCodec) Decode(r io.Reader) (any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("codec: decode form: %w", err)
	}
	return Values(values), nil
}

// Encode accepts url.Values, map[string]string or map[string]any with string,
// []string or []any values.
func (c *FormCodec) Encode(w http.ResponseWriter, status int, v any) error {
	values, err := toValues(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, err = io.WriteString(w, values.Encode())
	return err
}

// Values flattens url.Values: a key with one value maps to that string, a key
// with several maps to []any holding them in order.
func Values(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			out[k] = vs[0]
		default:
			items := make([]any, len(vs))
			for i, s := range vs {
				items[i] = s
			}
			out[k] = items
		}
	}
	return out
}

func toValues(v any) (url.Values, error) {
	switch m := v.(type) {
	case url.Values:
		return m, nil
	case map[string]string:
		out := make(url.Values, len(m))
		for k, s := range m {
			out.Set(k, s)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(url.Values, len(m))
		for _, k := range keys {
			switch item := m[k].(type) {
			case []string:
				out[k] = append([]string(nil), item...)
			case []any:
				for _, e := range item {
					out.Add(k, fmt.Sprint(e))
				}
			default:
				out.Set(k, fmt.Sprint(item))
			}
		}
		return out, nil
	case nil:
		return url.Values{}, nil
	}
	return nil, fmt.Errorf("codec: cannot encode %T as form", v)
}
