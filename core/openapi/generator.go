// Package openapi generates OpenAPI 3.0 specifications from model declarations.
// Paths, request/response schemas and constraints are derived from the
// same models the HTTP channel serves.
package openapi

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/artpar/immitate/core/convention"
	"github.com/artpar/immitate/core/schema"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"` // path, query
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Style       string  `json:"style,omitempty"`
	Explode     *bool   `json:"explode,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required,omitempty"`
	Content     map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	MinLength            *int               `json:"minLength,omitempty"`
	MaxLength            *int               `json:"maxLength,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	ExclusiveMinimum     bool               `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum     bool               `json:"exclusiveMaximum,omitempty"`
	Nullable             bool               `json:"nullable,omitempty"`
	ReadOnly             bool               `json:"readOnly,omitempty"`
	Default              any                `json:"default,omitempty"`
	Example              any                `json:"example,omitempty"`
}

// Components contains reusable schemas.
type Components struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// Tag provides metadata for a group of operations.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

const jsonType = "application/json"

// Generator generates OpenAPI specs from models.
type Generator struct {
	models  []convention.Derived
	info    Info
	servers []Server
}

// NewGenerator creates a generator for models, in the given order.
func NewGenerator(models []convention.Derived) *Generator {
	return &Generator{
		models: models,
		info: Info{
			Title:       "Awesome Rest",
			Version:     "1.0.0",
			Description: "Auto-generated REST API from model schemas",
		},
	}
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{URL: url, Description: description})
}

// Generate creates the OpenAPI specification.
func (g *Generator) Generate() *Spec {
	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Servers: g.servers,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: map[string]*Schema{
				"ValidationError": {
					Type: "object",
					Properties: map[string]*Schema{
						"status":  {Type: "integer", Example: 400},
						"message": {Type: "string", Example: "Validation Failed"},
						"errors":  {Type: "array", Items: &Schema{Type: "string"}},
					},
				},
				"Message": {
					Type: "object",
					Properties: map[string]*Schema{
						"status":  {Type: "integer"},
						"message": {Type: "string"},
					},
				},
				"DeleteResult": {
					Type: "object",
					Properties: map[string]*Schema{
						"status":  {Type: "integer", Example: 200},
						"message": {Type: "string"},
						"count":   {Type: "integer"},
					},
				},
			},
		},
		Tags: make([]Tag, 0, len(g.models)),
	}

	for _, m := range g.models {
		g.generateModel(spec, m)
	}
	return spec
}

// generateModel adds a model's schemas and paths to the spec.
func (g *Generator) generateModel(spec *Spec, m convention.Derived) {
	spec.Tags = append(spec.Tags, Tag{
		Name:        m.Title,
		Description: fmt.Sprintf("%s collection at %s", m.Title, m.BasePath),
	})

	spec.Components.Schemas[m.Title] = buildEntitySchema(m.Source)
	spec.Components.Schemas[m.Title+"Create"] = buildObject(m.Source.Schema, true, m.Source.Strict)
	spec.Components.Schemas[m.Title+"Update"] = buildObject(m.Source.Schema, false, m.Source.Strict)

	for _, v := range m.Verbs {
		switch v {
		case schema.VerbGet:
			g.addListPath(spec, m)
		case schema.VerbGetByID:
			g.addGetPath(spec, m)
		case schema.VerbCreate:
			g.addCreatePath(spec, m)
		case schema.VerbUpdate:
			g.addUpdatePath(spec, m)
		case schema.VerbUpdateByID:
			g.addUpdateByIDPath(spec, m)
		case schema.VerbDelete:
			g.addDeletePath(spec, m)
		case schema.VerbDeleteByID:
			g.addDeleteByIDPath(spec, m)
		}
	}
}

// buildEntitySchema describes a stored entity: the declared fields plus the
// store-managed ones.
func buildEntitySchema(m schema.Model) *Schema {
	s := buildObject(m.Schema, false, false)
	s.Properties[schema.FieldID] = &Schema{Type: "string", ReadOnly: true, Example: "4f9e1c2ab3d8e7f60a15"}
	s.Required = []string{schema.FieldID}
	if m.Timestamps {
		for _, f := range []string{schema.FieldCreatedAt, schema.FieldUpdatedAt} {
			s.Properties[f] = &Schema{Type: "string", ReadOnly: true, Example: "6/15/2024, 1:05:09 PM"}
		}
	}
	return s
}

// buildObject converts a schema level to an object schema. Required items
// are listed only for create bodies.
func buildObject(s schema.Schema, create, strict bool) *Schema {
	obj := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema, len(s)),
	}
	if strict {
		closed := false
		obj.AdditionalProperties = &closed
	}

	for _, f := range s {
		switch n := f.Node.(type) {
		case schema.DataType:
			obj.Properties[f.Name] = typeSchema(n)
		case *schema.Item:
			obj.Properties[f.Name] = itemSchema(f.Name, n)
			if create && n.Required {
				obj.Required = append(obj.Required, f.Name)
			}
		case schema.Schema:
			obj.Properties[f.Name] = buildObject(n, create, strict)
		}
	}
	return obj
}

func typeSchema(t schema.DataType) *Schema {
	switch t {
	case schema.Integer:
		return &Schema{Type: "integer", Example: 42}
	case schema.Decimal:
		return &Schema{Type: "number", Format: "double", Example: 99.99}
	case schema.Date:
		return &Schema{Type: "string", Description: "Date string or epoch milliseconds", Example: "2024-06-15T10:30:00Z"}
	}
	return &Schema{Type: "string", Example: "example"}
}

// itemSchema maps an item's constraints onto JSON Schema keywords: bounds
// on numbers, lengths on strings. Every constraint is also described in
// words since ordering bounds on strings apply to their length.
func itemSchema(name string, item *schema.Item) *Schema {
	s := typeSchema(item.Type)
	if item.HasDefault {
		s.Default = item.Default
		s.Example = item.Default
	}
	if item.IsEmail {
		s.Format = "email"
		s.Example = "user@example.com"
	}

	var notes []string
	lower := func(v float64, exclusive bool) {
		op := ">="
		if exclusive {
			op = ">"
		}
		notes = append(notes, fmt.Sprintf("%s %g", op, v))
		switch item.Type {
		case schema.String:
			n := int(math.Ceil(v))
			if exclusive && v == math.Trunc(v) {
				n++
			}
			s.MinLength = &n
		case schema.Integer, schema.Decimal:
			s.Minimum = &v
			s.ExclusiveMinimum = exclusive
		}
	}
	upper := func(v float64, exclusive bool) {
		op := "<="
		if exclusive {
			op = "<"
		}
		notes = append(notes, fmt.Sprintf("%s %g", op, v))
		switch item.Type {
		case schema.String:
			n := int(math.Floor(v))
			if exclusive && v == math.Trunc(v) {
				n--
			}
			s.MaxLength = &n
		case schema.Integer, schema.Decimal:
			s.Maximum = &v
			s.ExclusiveMaximum = exclusive
		}
	}

	switch {
	case item.Lte != nil:
		upper(*item.Lte, false)
	case item.Lt != nil:
		upper(*item.Lt, true)
	}
	switch {
	case item.Gte != nil:
		lower(*item.Gte, false)
	case item.Gt != nil:
		lower(*item.Gt, true)
	}
	if item.Len != nil {
		notes = append(notes, fmt.Sprintf("length %g", *item.Len))
		if item.Type == schema.String {
			n := int(*item.Len)
			s.MinLength, s.MaxLength = &n, &n
		}
	}
	if r := item.Range; r != nil {
		lower(r.From, !r.Inclusive)
		upper(r.To, !r.Inclusive)
	}

	if len(notes) > 0 {
		subject := name
		if item.Type == schema.String {
			subject = "length of " + name
		}
		s.Description = fmt.Sprintf("Constraints on %s: %s.", subject, strings.Join(notes, ", "))
	}
	return s
}

func ref(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

func jsonContent(s *Schema) map[string]MediaType {
	return map[string]MediaType{jsonType: {Schema: s}}
}

var idParam = Parameter{Name: "id", In: "path", Required: true, Description: "Entity id", Schema: &Schema{Type: "string"}}

// filterParam documents the free-form filter query parameters.
func filterParam() Parameter {
	explode := true
	return Parameter{
		Name: "filters",
		In:   "query",
		Description: "Field filters. A key is a dotted field path with an optional " +
			"operator suffix: _lt, _lte, _gt, _gte, _len. Without a suffix the " +
			"field must equal the value. All filters must match.",
		Style:   "form",
		Explode: &explode,
		Schema: &Schema{
			Type:    "object",
			Example: map[string]string{"price_gte": "10", "address.city": "Rome"},
		},
	}
}

var (
	notFoundResponse   = Response{Description: "Collection or entity not found", Content: jsonContent(ref("Message"))}
	badRequestResponse = Response{Description: "Validation failed", Content: jsonContent(ref("ValidationError"))}
	serverError        = Response{Description: "Store could not be persisted", Content: jsonContent(ref("Message"))}
)

func (g *Generator) addListPath(spec *Spec, m convention.Derived) {
	path := spec.Paths[m.BasePath]
	path.Get = &Operation{
		Tags:        []string{m.Title},
		Summary:     fmt.Sprintf("List %s", m.Resource),
		Description: fmt.Sprintf("Retrieve %s entities in insertion order, optionally filtered.", m.Title),
		OperationID: "list" + m.Title,
		Parameters:  []Parameter{filterParam()},
		Responses: map[string]Response{
			"200": {Description: "Matching entities", Content: jsonContent(&Schema{Type: "array", Items: ref(m.Title)})},
		},
	}
	spec.Paths[m.BasePath] = path
}

func (g *Generator) addGetPath(spec *Spec, m convention.Derived) {
	p := m.BasePath + "/{id}"
	path := spec.Paths[p]
	path.Get = &Operation{
		Tags:        []string{m.Title},
		Summary:     fmt.Sprintf("Get %s by id", m.Title),
		OperationID: "get" + m.Title,
		Parameters:  []Parameter{idParam},
		Responses: map[string]Response{
			"200": {Description: "The entity", Content: jsonContent(ref(m.Title))},
			"404": notFoundResponse,
		},
	}
	spec.Paths[p] = path
}

func (g *Generator) addCreatePath(spec *Spec, m convention.Derived) {
	path := spec.Paths[m.BasePath]
	path.Post = &Operation{
		Tags:        []string{m.Title},
		Summary:     fmt.Sprintf("Create %s", m.Title),
		OperationID: "create" + m.Title,
		RequestBody: &RequestBody{Required: true, Content: jsonContent(ref(m.Title + "Create"))},
		Responses: map[string]Response{
			"201": {Description: "Created entity", Content: jsonContent(ref(m.Title))},
			"400": badRequestResponse,
			"500": serverError,
		},
	}
	spec.Paths[m.BasePath] = path
}

func (g *Generator) addUpdatePath(spec *Spec, m convention.Derived) {
	path := spec.Paths[m.BasePath]
	op := &Operation{
		Tags:        []string{m.Title},
		Summary:     fmt.Sprintf("Update matching %s", m.Resource),
		Description: "Deep-merges the body into every entity matching the filters, or into all entities without filters.",
		OperationID: "update" + m.Title,
		Parameters:  []Parameter{filterParam()},
		RequestBody: &RequestBody{Required: true, Content: jsonContent(ref(m.Title + "Update"))},
		Responses: map[string]Response{
			"200": {Description: "Updated entities", Content: jsonContent(&Schema{Type: "array", Items: ref(m.Title)})},
			"400": badRequestResponse,
			"404": notFoundResponse,
			"500": serverError,
		},
	}
	path.Put = op
	path.Patch = op
	spec.Paths[m.BasePath] = path
}

func (g *Generator) addUpdateByIDPath(spec *Spec, m convention.Derived) {
	p := m.BasePath + "/{id}"
	path := spec.Paths[p]
	op := &Operation{
		Tags:        []string{m.Title},
		Summary:     fmt.Sprintf("Update %s by id", m.Title),
		OperationID: "update" + m.Title + "ByID",
		Parameters:  []Parameter{idParam},
		RequestBody: &RequestBody{Required: true, Content: jsonContent(ref(m.Title + "Update"))},
		Responses: map[string]Response{
			"200": {Description: "Updated entity", Content: jsonContent(ref(m.Title))},
			"400": badRequestResponse,
			"404": notFoundResponse,
			"500": serverError,
		},
	}
	path.Put = op
	path.Patch = op
	spec.Paths[p] = path
}

func (g *Generator) addDeletePath(spec *Spec, m convention.Derived) {
	path := spec.Paths[m.BasePath]
	path.Delete = &Operation{
		Tags:        []string{m.Title},
		Summary:     fmt.Sprintf("Delete matching %s", m.Resource),
		Description: "Deletes the entities matching the filters, or the whole collection without filters.",
		OperationID: "delete" + m.Title,
		Parameters:  []Parameter{filterParam()},
		Responses: map[string]Response{
			"200": {Description: "Delete result", Content: jsonContent(ref("DeleteResult"))},
			"404": notFoundResponse,
			"500": serverError,
		},
	}
	spec.Paths[m.BasePath] = path
}

func (g *Generator) addDeleteByIDPath(spec *Spec, m convention.Derived) {
	p := m.BasePath + "/{id}"
	path := spec.Paths[p]
	path.Delete = &Operation{
		Tags:        []string{m.Title},
		Summary:     fmt.Sprintf("Delete %s by id", m.Title),
		OperationID: "delete" + m.Title + "ByID",
		Parameters:  []Parameter{idParam},
		Responses: map[string]Response{
			"200": {Description: "Delete result", Content: jsonContent(ref("DeleteResult"))},
			"404": notFoundResponse,
			"500": serverError,
		},
	}
	spec.Paths[p] = path
}

// ToJSON converts the spec to JSON.
func (spec *Spec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// ToJSONCompact converts the spec to compact JSON.
func (spec *Spec) ToJSONCompact() ([]byte, error) {
	return json.Marshal(spec)
}
