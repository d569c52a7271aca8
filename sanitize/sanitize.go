package sanitize

// dangerousKeys are removed from every object level.
var dangerousKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// IsDangerousKey reports whether key is stripped by Value.
func IsDangerousKey(key string) bool {
	return dangerousKeys[key]
}

// Value returns a copy of v with every dangerous key removed, recursing into
// maps and slices. Scalars, nil and unknown types are returned as-is.
//
// A typed nil container stays a typed nil so that an explicit null input is
// still distinguishable from no input at all.
func Value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return val
		}
		return sanitizeMap(val)
	case []any:
		if val == nil {
			return val
		}
		return sanitizeSlice(val)
	case []map[string]any:
		if val == nil {
			return val
		}
		out := make([]map[string]any, len(val))
		for i, m := range val {
			if m == nil {
				continue
			}
			out[i] = sanitizeMap(m)
		}
		return out
	case map[string]string:
		if val == nil {
			return val
		}
		out := make(map[string]string, len(val))
		for k, s := range val {
			if dangerousKeys[k] {
				continue
			}
			out[k] = s
		}
		return out
	default:
		return v
	}
}

func sanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if dangerousKeys[k] {
			continue
		}
		out[k] = Value(v)
	}
	return out
}

func sanitizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = Value(v)
	}
	return out
}
