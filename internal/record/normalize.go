package record

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Normalize converts a decoded value into the representation used for
// comparison and canonical output.
//
// YAML and JSON decoders disagree on number types (int vs float64 vs
// json.Number), so integral numbers become int64 and everything else float64.
// Maps become map[string]any and every slice becomes []any.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int64:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return normalizeUint(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return normalizeUint(val)
	case float32:
		return normalizeFloat(float64(val))
	case float64:
		return normalizeFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return normalizeFloat(f)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Normalize(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	case Fields:
		return normalizeFields(val)
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = e
		}
		return out
	default:
		return val
	}
}

// NormalizeValues normalizes a positional value list in place of its
// property maps.
func NormalizeValues(values []map[string]any) []map[string]any {
	if values == nil {
		return nil
	}
	out := make([]map[string]any, len(values))
	for i, v := range values {
		out[i], _ = Normalize(v).(map[string]any)
	}
	return out
}

func normalizeFields(f Fields) map[string]any {
	out := make(map[string]any, len(f))
	for name, values := range f {
		out[name] = Normalize(values)
	}
	return out
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 && !math.IsInf(f, 0) {
		return int64(f)
	}
	return f
}

// FieldsFrom converts a generic decoded value, such as the result of
// json.Unmarshal into any, to Fields. Values are normalized.
func FieldsFrom(v any) (Fields, error) {
	m, ok := Normalize(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("fields: expected object, got %T", v)
	}
	out := make(Fields, len(m))
	for name, raw := range m {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("fields: %s: expected list, got %T", name, raw)
		}
		values := make([]map[string]any, len(list))
		for i, item := range list {
			props, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("fields: %s[%d]: expected object, got %T", name, i, item)
			}
			values[i] = props
		}
		out[name] = values
	}
	return out, nil
}
