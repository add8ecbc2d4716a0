package imports

// Deep-merge semantics for config trees:
//   - override=true: maps recurse, lists concatenate, scalars last-wins
//   - override=false: only absent keys are filled, present keys are kept
//     entirely (lists included: fill mode never concatenates)

// mergeOverride merges src into dst with src taking precedence on
// conflicts. dst is mutated and returned.
func mergeOverride(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, sv := range src {
		dv, exists := dst[key]
		if !exists {
			dst[key] = deepCopyValue(sv)
			continue
		}

		dm, dstIsMap := dv.(map[string]any)
		sm, srcIsMap := sv.(map[string]any)
		if dstIsMap && srcIsMap {
			dst[key] = mergeOverride(dm, sm)
			continue
		}

		dl, dstIsList := dv.([]any)
		sl, srcIsList := sv.([]any)
		if dstIsList && srcIsList {
			merged := make([]any, 0, len(dl)+len(sl))
			merged = append(merged, dl...)
			for _, item := range sl {
				merged = append(merged, deepCopyValue(item))
			}
			dst[key] = merged
			continue
		}

		dst[key] = deepCopyValue(sv)
	}
	return dst
}

// mergeFill merges src into dst filling only keys absent from dst.
// Present keys are never replaced, and present lists are not appended to.
func mergeFill(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, sv := range src {
		dv, exists := dst[key]
		if !exists {
			dst[key] = deepCopyValue(sv)
			continue
		}

		// Recurse into maps so nested absent keys still fill.
		dm, dstIsMap := dv.(map[string]any)
		sm, srcIsMap := sv.(map[string]any)
		if dstIsMap && srcIsMap {
			dst[key] = mergeFill(dm, sm)
		}
	}
	return dst
}

// filterSections returns a copy of tree containing only the listed
// top-level keys.
func filterSections(tree map[string]any, sections []string) map[string]any {
	out := make(map[string]any, len(sections))
	for _, s := range sections {
		if v, ok := tree[s]; ok {
			out[s] = v
		}
	}
	return out
}

// deepCopy returns a deep copy of a config tree. Merged results handed out
// of the cache are always copies so callers cannot corrupt cached state.
func deepCopy(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	return deepCopyValue(tree).(map[string]any)
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = deepCopyValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = deepCopyValue(child)
		}
		return out
	default:
		return v
	}
}
