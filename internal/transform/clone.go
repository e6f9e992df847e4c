package transform

// clone deep-copies a decoded JSON value. Scalars (string, json.Number,
// bool, nil) are immutable and returned as is.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneObject(t)
	case []any:
		return cloneArray(t)
	default:
		return v
	}
}

func cloneObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

func cloneArray(a []any) []any {
	if a == nil {
		return nil
	}
	out := make([]any, len(a))
	for i, v := range a {
		out[i] = clone(v)
	}
	return out
}
