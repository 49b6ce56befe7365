package schema

import "fmt"

// Verb names a CRUD route a model can expose.
type Verb string

const (
	VerbGet        Verb = "GET"
	VerbGetByID    Verb = "GET_BY_ID"
	VerbCreate     Verb = "CREATE"
	VerbUpdate     Verb = "UPDATE"
	VerbUpdateByID Verb = "UPDATE_BY_ID"
	VerbDelete     Verb = "DELETE"
	VerbDeleteByID Verb = "DELETE_BY_ID"
	VerbAll        Verb = "ALL"
)

// Verbs lists the concrete verbs in registration order.
var Verbs = []Verb{
	VerbGetByID,
	VerbGet,
	VerbCreate,
	VerbUpdate,
	VerbUpdateByID,
	VerbDelete,
	VerbDeleteByID,
}

// Valid reports whether v is a known verb or ALL.
func (v Verb) Valid() bool {
	if v == VerbAll {
		return true
	}
	for _, known := range Verbs {
		if v == known {
			return true
		}
	}
	return false
}

// Model is a named schema plus its behavioral flags and exposed verbs.
type Model struct {
	// Name is the model name as declared (e.g. "User"). It keys the
	// collection in the store document.
	Name string `yaml:"-"`

	// Resource is the URL segment the model is served under.
	// Derived from the name by convention when empty.
	Resource string `yaml:"resource,omitempty"`

	Schema Schema `yaml:"schema"`

	// Timestamps adds and manages createdAt/updatedAt.
	Timestamps bool `yaml:"timestamps"`

	// Strict rejects body keys that are not declared in the schema.
	Strict bool `yaml:"strict"`

	// NullFill sets every declared leaf still absent after defaulting to
	// null on create. Inherits Strict when unset.
	NullFill *bool `yaml:"nullFill,omitempty"`

	Routes []Verb `yaml:"routes"`
}

// FillsNulls reports whether create null-fills unspecified leaves.
func (m Model) FillsNulls() bool {
	if m.NullFill != nil {
		return *m.NullFill
	}
	return m.Strict
}

// Exposes reports whether the model serves verb v.
func (m Model) Exposes(v Verb) bool {
	for _, r := range m.Routes {
		if r == VerbAll || r == v {
			return true
		}
	}
	return false
}

// ExposedVerbs expands the route list into concrete verbs, without duplicates.
func (m Model) ExposedVerbs() []Verb {
	var out []Verb
	for _, v := range Verbs {
		if m.Exposes(v) {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks the model declaration.
func (m Model) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if len(m.Schema) == 0 {
		return fmt.Errorf("model %s: schema is required", m.Name)
	}
	for _, r := range m.Routes {
		if !r.Valid() {
			return fmt.Errorf("model %s: unknown route %q", m.Name, r)
		}
	}
	if err := validateSchema(m.Schema, ""); err != nil {
		return fmt.Errorf("model %s: %w", m.Name, err)
	}
	return nil
}

func validateSchema(s Schema, prefix string) error {
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		if f.Name == "" {
			return fmt.Errorf("empty field name under %q", prefix)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %s declared twice", path)
		}
		seen[f.Name] = true

		switch n := f.Node.(type) {
		case DataType:
			if !n.Valid() {
				return fmt.Errorf("field %s: unknown data type %q", path, n)
			}
		case *Item:
			if n == nil || !n.Type.Valid() {
				return fmt.Errorf("field %s: item requires a known type", path)
			}
		case Schema:
			if err := validateSchema(n, path); err != nil {
				return err
			}
		default:
			return fmt.Errorf("field %s: missing declaration", path)
		}
	}
	return nil
}
