// Package query filters entity sequences with operator-suffixed parameters.
//
// A parameter key is a dotted field path optionally followed by an operator
// suffix after the last underscore:
//
//	price_gte=10       price >= 10
//	name_len=4         len(name) == 4
//	address.city=Rome  address.city == "Rome"
//
// Keys whose suffix is not a known operator are treated as a field path in
// full, so "created_by=x" compares the field "created_by". Every parameter
// must hold for an entity to be kept.
package query

import (
	"math"
	"strconv"
	"strings"

	"github.com/artpar/immitate/core/validation"
)

// Operator is a comparison selected by a parameter suffix.
type Operator int

const (
	Eq Operator = iota
	Lt
	Lte
	Gt
	Gte
	Len
)

var operatorNames = map[Operator]string{
	Eq:  "eq",
	Lt:  "lt",
	Lte: "lte",
	Gt:  "gt",
	Gte: "gte",
	Len: "len",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "unknown"
}

// suffixes maps a key suffix to its operator. Equality has no suffix.
var suffixes = map[string]Operator{
	"lt":  Lt,
	"lte": Lte,
	"gt":  Gt,
	"gte": Gte,
	"len": Len,
}

// comparators evaluate the non-equality operators.
var comparators = map[Operator]func(input any, test float64) (bool, error){
	Lt:  validation.Lt,
	Lte: validation.Lte,
	Gt:  validation.Gt,
	Gte: validation.Gte,
	Len: validation.Len,
}

// Condition is one parsed filter parameter.
type Condition struct {
	Path  []string
	Op    Operator
	Value string
}

// Parse splits a parameter key into a field path and operator.
func Parse(key, value string) Condition {
	field := key
	op := Eq
	if i := strings.LastIndex(key, "_"); i >= 0 {
		if known, ok := suffixes[key[i+1:]]; ok {
			field, op = key[:i], known
		}
	}
	return Condition{Path: strings.Split(field, "."), Op: op, Value: value}
}

// ParseAll parses every parameter of a query.
func ParseAll(params map[string]string) []Condition {
	conds := make([]Condition, 0, len(params))
	for k, v := range params {
		conds = append(conds, Parse(k, v))
	}
	return conds
}

// Filter returns the entities matching every parameter, in their original
// order. The entities themselves are not copied.
func Filter(entities []map[string]any, params map[string]string) []map[string]any {
	conds := ParseAll(params)
	out := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		if MatchAll(e, conds) {
			out = append(out, e)
		}
	}
	return out
}

// MatchAll reports whether entity satisfies every condition.
func MatchAll(entity map[string]any, conds []Condition) bool {
	for _, c := range conds {
		if !c.Match(entity) {
			return false
		}
	}
	return true
}

// Match reports whether entity satisfies the condition.
func (c Condition) Match(entity map[string]any) bool {
	value, ok := Lookup(entity, c.Path)
	if !ok || value == nil {
		return false
	}

	if c.Op == Eq {
		return equal(value, c.Value)
	}

	test, ok := toNumber(c.Value)
	if !ok {
		return false
	}
	pass, err := comparators[c.Op](value, test)
	if err != nil {
		return false
	}
	return pass
}

// Lookup descends into nested objects along path.
func Lookup(entity map[string]any, path []string) (any, bool) {
	var cur any = entity
	for _, seg := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// equal compares an entity value to a literal parameter. Numbers compare by
// their printed form; other non-string values never match.
func equal(value any, param string) bool {
	switch v := value.(type) {
	case string:
		return v == param
	}
	if f, ok := validation.Number(value); ok {
		return validation.FormatNumber(f) == param
	}
	return false
}

// toNumber reads a parameter the way a loosely typed client would coerce
// it: surrounding space is ignored and an empty value is zero.
func toNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	switch s {
	case "Infinity", "+Infinity", "-Infinity":
		return 0, false
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.Contains(s, "_") {
		return 0, false
	}
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
