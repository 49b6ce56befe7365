package openapi

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/artpar/immitate/core/convention"
	"github.com/artpar/immitate/core/schema"
)

func testModels() []convention.Derived {
	user := schema.Model{
		Name:       "User",
		Timestamps: true,
		Strict:     true,
		Routes:     []schema.Verb{schema.VerbAll},
		Schema: schema.Schema{
			{Name: "name", Node: &schema.Item{Type: schema.String, Required: true, Gte: schema.Float(2), Lt: schema.Float(10)}},
			{Name: "email", Node: &schema.Item{Type: schema.String, IsEmail: true}},
			{Name: "age", Node: &schema.Item{Type: schema.Integer, Gt: schema.Float(0), Lte: schema.Float(150)}},
			{Name: "pin", Node: &schema.Item{Type: schema.String, Len: schema.Float(4)}},
			{Name: "score", Node: &schema.Item{Type: schema.Decimal, Range: &schema.Range{From: 0, To: 10}}},
			{Name: "role", Node: &schema.Item{Type: schema.String, Default: "member", HasDefault: true}},
			{Name: "born", Node: schema.Date},
			{Name: "address", Node: schema.Schema{
				{Name: "city", Node: schema.String},
				{Name: "zipCode", Node: &schema.Item{Type: schema.Integer, Required: true}},
			}},
		},
	}
	post := schema.Model{
		Name:   "Post",
		Routes: []schema.Verb{schema.VerbGet, schema.VerbCreate},
		Schema: schema.Schema{{Name: "title", Node: schema.String}},
	}
	return []convention.Derived{convention.Derive(user), convention.Derive(post)}
}

func TestNewGenerator(t *testing.T) {
	spec := NewGenerator(nil).Generate()

	if spec.OpenAPI != "3.0.3" {
		t.Errorf("OpenAPI = %q", spec.OpenAPI)
	}
	if spec.Info.Title != "Awesome Rest" {
		t.Errorf("Info.Title = %q", spec.Info.Title)
	}
	if len(spec.Paths) != 0 {
		t.Errorf("Paths = %v, want none", spec.Paths)
	}
	for _, name := range []string{"ValidationError", "Message", "DeleteResult"} {
		if spec.Components.Schemas[name] == nil {
			t.Errorf("missing shared schema %s", name)
		}
	}
}

func TestSetInfoAndServers(t *testing.T) {
	g := NewGenerator(nil)
	g.SetInfo(Info{Title: "Shop", Version: "2.0.0"})
	g.AddServer("http://localhost:8080", "Current server")

	spec := g.Generate()
	if spec.Info.Title != "Shop" || spec.Info.Version != "2.0.0" {
		t.Errorf("Info = %+v", spec.Info)
	}
	if len(spec.Servers) != 1 || spec.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("Servers = %+v", spec.Servers)
	}
}

func TestGeneratePaths(t *testing.T) {
	spec := NewGenerator(testModels()).Generate()

	users := spec.Paths["/users"]
	if users.Get == nil || users.Post == nil || users.Put == nil || users.Patch == nil || users.Delete == nil {
		t.Errorf("/users operations incomplete: %+v", users)
	}
	byID := spec.Paths["/users/{id}"]
	if byID.Get == nil || byID.Put == nil || byID.Patch == nil || byID.Delete == nil {
		t.Errorf("/users/{id} operations incomplete: %+v", byID)
	}

	posts := spec.Paths["/posts"]
	if posts.Get == nil || posts.Post == nil || posts.Delete != nil || posts.Put != nil {
		t.Errorf("/posts should expose only list and create: %+v", posts)
	}
	if _, ok := spec.Paths["/posts/{id}"]; ok {
		t.Error("/posts/{id} generated without by-id verbs")
	}

	if len(spec.Tags) != 2 || spec.Tags[0].Name != "User" || spec.Tags[1].Name != "Post" {
		t.Errorf("Tags = %+v, want declaration order", spec.Tags)
	}
}

func TestOperationResponses(t *testing.T) {
	spec := NewGenerator(testModels()).Generate()

	create := spec.Paths["/users"].Post
	if _, ok := create.Responses["201"]; !ok {
		t.Error("create lacks 201")
	}
	if _, ok := create.Responses["400"]; !ok {
		t.Error("create lacks 400")
	}
	if got := create.RequestBody.Content[jsonType].Schema.Ref; got != "#/components/schemas/UserCreate" {
		t.Errorf("create body ref = %q", got)
	}

	get := spec.Paths["/users/{id}"].Get
	if _, ok := get.Responses["404"]; !ok {
		t.Error("get by id lacks 404")
	}
	if get.OperationID != "getUser" {
		t.Errorf("OperationID = %q", get.OperationID)
	}

	del := spec.Paths["/users/{id}"].Delete
	if got := del.Responses["200"].Content[jsonType].Schema.Ref; got != "#/components/schemas/DeleteResult" {
		t.Errorf("delete response ref = %q", got)
	}

	list := spec.Paths["/users"].Get
	if len(list.Parameters) != 1 || list.Parameters[0].In != "query" {
		t.Errorf("list parameters = %+v", list.Parameters)
	}
}

func TestEntitySchemas(t *testing.T) {
	spec := NewGenerator(testModels()).Generate()
	schemas := spec.Components.Schemas

	create := schemas["UserCreate"]
	if strings.Join(create.Required, ",") != "name" {
		t.Errorf("UserCreate.Required = %v", create.Required)
	}
	if create.AdditionalProperties == nil || *create.AdditionalProperties {
		t.Error("strict model should forbid additional properties")
	}
	if addr := create.Properties["address"]; addr == nil || strings.Join(addr.Required, ",") != "zipCode" {
		t.Errorf("nested required = %+v", addr)
	}

	if update := schemas["UserUpdate"]; len(update.Required) != 0 {
		t.Errorf("UserUpdate.Required = %v, want none", update.Required)
	}

	entity := schemas["User"]
	for _, f := range []string{"id", "createdAt", "updatedAt"} {
		if p := entity.Properties[f]; p == nil || !p.ReadOnly {
			t.Errorf("entity property %s missing or writable", f)
		}
	}
	if _, ok := schemas["Post"].Properties["createdAt"]; ok {
		t.Error("timestamps documented for a model without them")
	}
}

func TestItemSchema(t *testing.T) {
	props := NewGenerator(testModels()).Generate().Components.Schemas["UserCreate"].Properties

	name := props["name"]
	if name.MinLength == nil || *name.MinLength != 2 || name.MaxLength == nil || *name.MaxLength != 9 {
		t.Errorf("name lengths = %v..%v, want 2..9", name.MinLength, name.MaxLength)
	}
	if !strings.Contains(name.Description, "length of name") {
		t.Errorf("name description = %q", name.Description)
	}

	age := props["age"]
	if age.Type != "integer" || *age.Minimum != 0 || !age.ExclusiveMinimum || *age.Maximum != 150 || age.ExclusiveMaximum {
		t.Errorf("age = %+v", age)
	}

	if pin := props["pin"]; *pin.MinLength != 4 || *pin.MaxLength != 4 {
		t.Errorf("pin lengths = %d..%d", *pin.MinLength, *pin.MaxLength)
	}

	score := props["score"]
	if score.Type != "number" || !score.ExclusiveMinimum || !score.ExclusiveMaximum || *score.Maximum != 10 {
		t.Errorf("score = %+v", score)
	}

	if email := props["email"]; email.Format != "email" {
		t.Errorf("email format = %q", email.Format)
	}
	if role := props["role"]; role.Default != "member" {
		t.Errorf("role default = %v", role.Default)
	}
	if born := props["born"]; born.Type != "string" {
		t.Errorf("born type = %q", born.Type)
	}
}

func TestToJSON(t *testing.T) {
	spec := NewGenerator(testModels()).Generate()

	data, err := spec.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	compact, err := spec.ToJSONCompact()
	if err != nil {
		t.Fatalf("ToJSONCompact: %v", err)
	}
	if len(compact) >= len(data) {
		t.Error("compact output is not smaller")
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["openapi"] != "3.0.3" {
		t.Errorf("openapi = %v", decoded["openapi"])
	}
}
