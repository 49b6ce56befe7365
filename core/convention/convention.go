// Package convention derives names and paths from model declarations.
// Everything a model leaves unspecified is filled in here, so the HTTP layer
// and the OpenAPI generator agree on the same values.
package convention

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/artpar/immitate/core/schema"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Derived is a model with its conventional names resolved.
type Derived struct {
	// Source is the model as declared.
	Source schema.Model

	// Title is the display name used in messages (e.g. "User").
	Title string

	// Resource is the URL segment (e.g. "users").
	Resource string

	// BasePath is the collection route (e.g. "/users").
	BasePath string

	// Verbs are the concrete verbs the model serves.
	Verbs []schema.Verb
}

// Derive resolves the conventional names of a model.
func Derive(m schema.Model) Derived {
	resource := strings.Trim(m.Resource, "/")
	if resource == "" {
		resource = ResourceName(m.Name)
	}
	return Derived{
		Source:   m,
		Title:    Capitalize(m.Name),
		Resource: resource,
		BasePath: "/" + resource,
		Verbs:    m.ExposedVerbs(),
	}
}

// ResourceName returns the default URL segment for a model name: the lower
// cased plural form. Names that already read as plurals are kept as is.
func ResourceName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return ""
	}
	if IsPlural(lower) {
		return lower
	}
	return Pluralize(lower)
}

// Capitalize upper-cases the first letter and keeps the rest as is.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return cases.Upper(language.English).String(string(r)) + s[size:]
}

// ValidResource reports whether s is usable as a single URL segment.
func ValidResource(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
			return false
		}
	}
	return true
}
