package schema

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Parse parses a schema from YAML (or JSON) bytes.
func Parse(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return s, nil
}

// UnmarshalYAML decodes a mapping into an ordered schema. A mapping value
// with a "type" key is an item, any other mapping is a nested schema and a
// scalar is a bare data type.
func (s *Schema) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema must be a mapping", value.Line)
	}

	out := make(Schema, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		node, err := decodeNode(val)
		if err != nil {
			return fmt.Errorf("field %s: %w", key.Value, err)
		}
		out = append(out, Field{Name: key.Value, Node: node})
	}
	*s = out
	return nil
}

func decodeNode(value *yaml.Node) (Node, error) {
	switch value.Kind {
	case yaml.ScalarNode:
		t := DataType(value.Value)
		if !t.Valid() {
			return nil, fmt.Errorf("line %d: unknown data type %q", value.Line, value.Value)
		}
		return t, nil

	case yaml.MappingNode:
		if mappingHasKey(value, "type") {
			return decodeItem(value)
		}
		var nested Schema
		if err := nested.UnmarshalYAML(value); err != nil {
			return nil, err
		}
		return nested, nil

	case yaml.AliasNode:
		return decodeNode(value.Alias)
	}
	return nil, fmt.Errorf("line %d: expected a data type or a mapping", value.Line)
}

func mappingHasKey(value *yaml.Node, key string) bool {
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == key {
			return true
		}
	}
	return false
}

func decodeItem(value *yaml.Node) (*Item, error) {
	item := &Item{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]

		var err error
		switch key {
		case "type":
			item.Type = DataType(val.Value)
			if !item.Type.Valid() {
				return nil, fmt.Errorf("line %d: unknown data type %q", val.Line, val.Value)
			}
		case "required":
			err = val.Decode(&item.Required)
		case "default":
			var v any
			if err = val.Decode(&v); err == nil {
				item.Default = normalize(v)
				item.HasDefault = true
			}
		case "lt":
			item.Lt, err = decodeBound(val)
		case "lte":
			item.Lte, err = decodeBound(val)
		case "gt":
			item.Gt, err = decodeBound(val)
		case "gte":
			item.Gte, err = decodeBound(val)
		case "len":
			item.Len, err = decodeBound(val)
		case "range":
			item.Range, err = decodeRange(val)
		case "isEmail":
			err = val.Decode(&item.IsEmail)
		default:
			return nil, fmt.Errorf("line %d: unknown item key %q", value.Content[i].Line, key)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	return item, nil
}

func decodeBound(value *yaml.Node) (*float64, error) {
	var f float64
	if err := value.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func decodeRange(value *yaml.Node) (*Range, error) {
	if value.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: range must be a mapping", value.Line)
	}
	if !mappingHasKey(value, "from") || !mappingHasKey(value, "to") {
		return nil, fmt.Errorf("line %d: range requires from and to", value.Line)
	}
	var r Range
	if err := value.Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// normalize converts decoded YAML values into the shapes encoding/json
// produces, so defaults compare and serialize like request bodies.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case float64:
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

// MarshalYAML encodes the schema back into its declarative form.
func (s Schema) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range s {
		val, err := encodeNode(f.Node)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			val,
		)
	}
	return node, nil
}

func encodeNode(n Node) (*yaml.Node, error) {
	switch t := n.(type) {
	case DataType:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: string(t)}, nil
	case Schema:
		v, err := t.MarshalYAML()
		if err != nil {
			return nil, err
		}
		return v.(*yaml.Node), nil
	case *Item:
		m := &yaml.Node{Kind: yaml.MappingNode}
		add := func(key string, v any) error {
			val := &yaml.Node{}
			if err := val.Encode(v); err != nil {
				return err
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, val)
			return nil
		}
		for _, p := range itemPairs(t) {
			if err := add(p.key, p.val); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown node %T", n)
}

type pair struct {
	key string
	val any
}

// itemPairs lists the declared keys of an item in their canonical order.
func itemPairs(t *Item) []pair {
	all := []struct {
		pair
		set bool
	}{
		{pair{"type", string(t.Type)}, true},
		{pair{"required", t.Required}, t.Required},
		{pair{"default", t.Default}, t.HasDefault},
		{pair{"lt", deref(t.Lt)}, t.Lt != nil},
		{pair{"lte", deref(t.Lte)}, t.Lte != nil},
		{pair{"gt", deref(t.Gt)}, t.Gt != nil},
		{pair{"gte", deref(t.Gte)}, t.Gte != nil},
		{pair{"len", deref(t.Len)}, t.Len != nil},
		{pair{"range", t.Range}, t.Range != nil},
		{pair{"isEmail", t.IsEmail}, t.IsEmail},
	}
	out := make([]pair, 0, len(all))
	for _, p := range all {
		if p.set {
			out = append(out, p.pair)
		}
	}
	return out
}

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	if *f == math.Trunc(*f) && math.Abs(*f) < 1<<53 {
		return int64(*f)
	}
	return *f
}
