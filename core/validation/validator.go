// Package validation checks request bodies against a model's schema.
//
// Validation never returns an error value: every rule violation is reported
// in a Result with Success set to false. Tree traversal stops at the first
// failing field, although a single item may report several of its own
// constraint failures at once.
package validation

import (
	"fmt"
	"sort"

	"github.com/artpar/immitate/core/schema"
)

type mode int

const (
	modeCreate mode = iota
	modeUpdate
)

// ValidateForCreate validates a body about to become a new entity. Required
// items must be present at every level.
func ValidateForCreate(model schema.Model, body map[string]any) Result {
	return validate(model, body, modeCreate)
}

// ValidateForUpdate validates a partial update. Absent fields are skipped.
func ValidateForUpdate(model schema.Model, body map[string]any) Result {
	return validate(model, body, modeUpdate)
}

func validate(model schema.Model, body map[string]any, md mode) Result {
	if body == nil {
		body = map[string]any{}
	}

	if model.Timestamps && (hasKey(body, schema.FieldCreatedAt) || hasKey(body, schema.FieldUpdatedAt)) {
		if md == modeCreate {
			return newResult([]string{"Cannot set timestamp properties manually"})
		}
		return newResult([]string{"Cannot update timestamp properties manually"})
	}
	if hasKey(body, schema.FieldID) {
		return newResult([]string{"ID is a reserved field and cannot be set manually"})
	}

	return newResult(walk(model.Schema, body, "", model.Strict, md))
}

// walk validates body against one schema level and returns the errors of
// the first failing field.
func walk(s schema.Schema, body map[string]any, prefix string, strict bool, md mode) []string {
	if strict {
		if key, ok := unknownKey(s, body); ok {
			return []string{"Unknown property " + join(prefix, key)}
		}
	}

	for _, f := range s {
		value, present := body[f.Name]
		path := join(prefix, f.Name)

		switch n := f.Node.(type) {
		case *schema.Item:
			if !present {
				if md == modeCreate && n.Required {
					return []string{fmt.Sprintf("Required property %s missing", path)}
				}
				continue
			}
			if res := ValidateSchemaItem(path, n, value); !res.Success {
				return res.Errors
			}

		case schema.DataType:
			if present && !ValidateType(n, value) {
				return []string{"Type mismatch for key " + path}
			}

		case schema.Schema:
			var nested map[string]any
			if present {
				obj, ok := value.(map[string]any)
				if !ok {
					return []string{fmt.Sprintf("Expecting %s to be an object, found %s", path, TypeOf(value))}
				}
				nested = obj
			} else if md == modeUpdate {
				continue
			} else {
				nested = map[string]any{}
			}
			if errs := walk(n, nested, path, strict, md); len(errs) > 0 {
				return errs
			}
		}
	}
	return nil
}

// unknownKey returns the first body key, in sorted order, that the schema
// does not declare.
func unknownKey(s schema.Schema, body map[string]any) (string, bool) {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !s.Has(k) {
			return k, true
		}
	}
	return "", false
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
