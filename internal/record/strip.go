package record

// StripKeys returns a copy of v with every map key in keys removed, at every
// nesting level. Used to drop environment-varying fields before comparison.
func StripKeys(v any, keys []string) any {
	if len(keys) == 0 {
		return v
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return stripKeys(v, set)
}

func stripKeys(v any, keys map[string]struct{}) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			if _, drop := keys[k]; drop {
				continue
			}
			out[k] = stripKeys(e, keys)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = stripKeys(e, keys)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = stripKeys(e, keys)
		}
		return out
	default:
		return val
	}
}
