package schema

// DataType is a primitive field type.
type DataType string

const (
	String  DataType = "String"
	Integer DataType = "Integer"
	Decimal DataType = "Decimal"
	Date    DataType = "Date"
)

// DataTypes lists every supported primitive type.
var DataTypes = []DataType{String, Integer, Decimal, Date}

// Valid reports whether t is a known primitive type.
func (t DataType) Valid() bool {
	switch t {
	case String, Integer, Decimal, Date:
		return true
	}
	return false
}

// Reserved entity fields managed by the store.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Node is a schema field declaration: a DataType, an *Item or a nested Schema.
type Node interface {
	node()
}

func (DataType) node() {}
func (*Item) node()    {}
func (Schema) node()   {}

// Item is a typed leaf with an optional constraint set.
type Item struct {
	Type     DataType
	Required bool

	// Default is only meaningful when HasDefault is set, so that a declared
	// null default can be told apart from no default at all.
	Default    any
	HasDefault bool

	Lt      *float64
	Lte     *float64
	Gt      *float64
	Gte     *float64
	Len     *float64
	Range   *Range
	IsEmail bool
}

// Range bounds a value (numbers) or a length (strings) on both sides.
type Range struct {
	From      float64 `yaml:"from" json:"from"`
	To        float64 `yaml:"to" json:"to"`
	Inclusive bool    `yaml:"inclusive" json:"inclusive"`
}

// Field is a named node of a schema.
type Field struct {
	Name string
	Node Node
}

// Schema is an ordered list of field declarations.
type Schema []Field

// Lookup returns the node declared under name.
func (s Schema) Lookup(name string) (Node, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Node, true
		}
	}
	return nil, false
}

// Has reports whether name is declared at this level.
func (s Schema) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Names returns the declared field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Float returns a pointer to v, for building items in code.
func Float(v float64) *float64 {
	return &v
}
