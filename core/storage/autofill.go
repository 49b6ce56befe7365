package storage

import (
	"github.com/artpar/immitate/core/schema"
	"github.com/mohae/deepcopy"
)

// autofill walks s in declaration order and fills body in place: declared
// defaults for absent item keys, then, when fillNulls is set, null for any
// declared key still absent. Nested schemas are walked even when the body
// omits them; the nested object is attached only when it was present,
// when nulls are filled, or when defaulting produced something.
func autofill(s schema.Schema, body map[string]any, fillNulls bool) {
	for _, f := range s {
		switch n := f.Node.(type) {
		case *schema.Item:
			if _, ok := body[f.Name]; !ok && n.HasDefault {
				body[f.Name] = deepcopy.Copy(n.Default)
			}
		case schema.Schema:
			existing, present := body[f.Name]
			nested, isObject := existing.(map[string]any)
			if present && !isObject {
				continue
			}
			if nested == nil {
				nested = map[string]any{}
			}
			autofill(n, nested, fillNulls)
			if present || fillNulls || len(nested) > 0 {
				body[f.Name] = nested
			}
		}

		if _, ok := body[f.Name]; !ok && fillNulls {
			body[f.Name] = nil
		}
	}
}

// merge deep-merges src into dst. Objects merge key by key and arrays
// merge index by index; any other src value, null included, replaces the
// dst value. src must not be used afterwards.
func merge(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = mergeValue(dst[k], v)
	}
}

func mergeValue(dst, src any) any {
	switch s := src.(type) {
	case map[string]any:
		d, ok := dst.(map[string]any)
		if !ok {
			d = make(map[string]any, len(s))
		}
		merge(d, s)
		return d
	case []any:
		d, ok := dst.([]any)
		if !ok {
			d = nil
		}
		out := make([]any, max(len(d), len(s)))
		copy(out, d)
		for i, v := range s {
			out[i] = mergeValue(out[i], v)
		}
		return out
	}
	return src
}

// stripReserved removes the store-managed keys from a patch.
func stripReserved(patch map[string]any) {
	delete(patch, schema.FieldID)
	delete(patch, schema.FieldCreatedAt)
	delete(patch, schema.FieldUpdatedAt)
}

// copyEntity deep-copies a JSON object; nil yields an empty object.
func copyEntity(e map[string]any) Entity {
	if e == nil {
		return Entity{}
	}
	return deepcopy.Copy(e).(map[string]any)
}

// copyCollection deep-copies entities into a non-nil slice.
func copyCollection(entities []Entity) []Entity {
	out := make([]Entity, len(entities))
	for i, e := range entities {
		out[i] = copyEntity(e)
	}
	return out
}
