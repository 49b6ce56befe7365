package schema

import (
	"encoding/json"
	"testing"
)

func TestSchema_MarshalJSON(t *testing.T) {
	src := `
title: { type: String, required: true, lte: 150 }
likes: { type: Integer, default: 0, gte: 0 }
slug: { type: String, range: { from: 3, to: 8, inclusive: true } }
meta:
  tags: String
`
	s, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"title":{"type":"String","required":true,"lte":150},` +
		`"likes":{"type":"Integer","default":0,"gte":0},` +
		`"slug":{"type":"String","range":{"from":3,"to":8,"inclusive":true}},` +
		`"meta":{"tags":"String"}}`
	if string(out) != want {
		t.Errorf("Marshal =\n%s\nwant\n%s", out, want)
	}
}

func TestSchema_MarshalJSON_ParsesBack(t *testing.T) {
	s := Schema{
		{Name: "email", Node: &Item{Type: String, IsEmail: true, Default: nil, HasDefault: true}},
		{Name: "n", Node: Decimal},
	}
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"email":{"type":"String","default":null,"isEmail":true},"n":"Decimal"}` {
		t.Errorf("Marshal = %s", out)
	}

	again, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	node, _ := again.Lookup("email")
	item := node.(*Item)
	if !item.HasDefault || item.Default != nil || !item.IsEmail {
		t.Errorf("email = %+v", item)
	}
}
