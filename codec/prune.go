package codec

// Prune returns a copy of shape with every absent value removed, recursively.
//
// An entry is absent when its value is nil. Canonical encoding forbids
// null-valued fields: an unset optional must be missing entirely, never
// present as null, so that replicas derive identical bytes for the same
// logical value. Prune is pure; the input map is never mutated.
//
// This operates on generic shapes (string-keyed maps and slices) rather than
// per-field logic so it covers descriptor fields added later.
func Prune(shape map[string]any) map[string]any {
	out := make(map[string]any, len(shape))
	for k, v := range shape {
		pruned, ok := pruneValue(v)
		if !ok {
			continue
		}
		out[k] = pruned
	}
	return out
}

func pruneValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return Prune(t), true
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			pruned, ok := pruneValue(e)
			if !ok {
				// Absent elements inside a list have no well-defined
				// canonical meaning; drop them rather than encode null.
				continue
			}
			out = append(out, pruned)
		}
		return out, true
	default:
		return v, true
	}
}
