package jsonpath

import "encoding/json"

// Numbers in working documents may be int, int64, float64, or json.Number
// depending on how the document was produced. These helpers are the single
// coercion point used by comparators and intrinsics.

// Float coerces a document value to float64.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int coerces a document value to int64. Floats qualify only when they
// carry no fractional part.
func Int(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case uint64:
		return int64(t), true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
		return 0, false
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// IsNumber reports whether v is any of the numeric representations.
func IsNumber(v any) bool {
	_, ok := Float(v)
	return ok
}
