package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the schema in its declarative form, keeping the
// declaration order of fields.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		val, err := marshalNode(f.Node)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		writeKey(&buf, f.Name)
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNode(n Node) ([]byte, error) {
	switch t := n.(type) {
	case DataType:
		return json.Marshal(string(t))
	case Schema:
		return t.MarshalJSON()
	case *Item:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, p := range itemPairs(t) {
			if i > 0 {
				buf.WriteByte(',')
			}
			val, err := json.Marshal(p.val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.key, err)
			}
			writeKey(&buf, p.key)
			buf.Write(val)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown node %T", n)
}

func writeKey(buf *bytes.Buffer, key string) {
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
}
