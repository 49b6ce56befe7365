package config_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/artpar/immitate/config"
	"github.com/artpar/immitate/core/schema"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	return writeFile(t, "immitate.yaml", content)
}

func validConfig() string {
	return `
port: 3000
db: data/store.json
models:
  User:
    timestamps: true
    strict: true
    routes: [ALL]
    schema:
      name: { type: String, required: true }
      email: { type: String, required: true, isEmail: true }
      phone: Integer
      address:
        city: String
        zipCode: { type: Integer, required: true }
  Post:
    resource: articles
    routes: [GET, GET_BY_ID]
    schema:
      title: String
`
}

func modelNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.Models))
	for i, m := range cfg.Models {
		names[i] = m.Name
	}
	return names
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validConfig()))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 3000 || cfg.Port != 3000 {
		t.Errorf("port = %d/%d, want 3000", cfg.Server.Port, cfg.Port)
	}
	if cfg.DB.Name != "data/store.json" || cfg.DB.Driver != "json" || cfg.DB.RemoveExisting {
		t.Errorf("DB = %+v", cfg.DB)
	}
	if got := modelNames(cfg); !reflect.DeepEqual(got, []string{"User", "Post"}) {
		t.Errorf("models = %v, want [User Post]", got)
	}

	user := cfg.Models[0]
	if !user.Timestamps || !user.Strict || !user.FillsNulls() {
		t.Errorf("user flags = %+v", user)
	}
	if got := user.Schema.Names(); !reflect.DeepEqual(got, []string{"name", "email", "phone", "address"}) {
		t.Errorf("user fields = %v", got)
	}
	addr, _ := user.Schema.Lookup("address")
	if _, ok := addr.(schema.Schema); !ok {
		t.Errorf("address = %T, want nested schema", addr)
	}

	derived := cfg.Derived()
	if derived[0].BasePath != "/users" || derived[1].BasePath != "/articles" {
		t.Errorf("paths = %s, %s", derived[0].BasePath, derived[1].BasePath)
	}
	if len(derived[1].Verbs) != 2 {
		t.Errorf("post verbs = %v", derived[1].Verbs)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
models:
  Note:
    routes: [ALL]
    schema:
      text: String
`))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"server.port", cfg.Server.Port, 8080},
		{"server.host", cfg.Server.Host, "0.0.0.0"},
		{"server.read_timeout", cfg.Server.ReadTimeout, 30 * time.Second},
		{"server.write_timeout", cfg.Server.WriteTimeout, 60 * time.Second},
		{"db.name", cfg.DB.Name, "immitate.db.json"},
		{"db.driver", cfg.DB.Driver, "json"},
		{"ids.format", cfg.IDs.Format, "hex"},
		{"logging.level", cfg.Logging.Level, "info"},
		{"logging.format", cfg.Logging.Format, "console"},
		{"metrics.enabled", cfg.Metrics.On(), true},
		{"metrics.path", cfg.Metrics.Path, "/metrics"},
		{"openapi.enabled", cfg.OpenAPI.On(), true},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_DBForms(t *testing.T) {
	tests := []struct {
		name   string
		db     string
		want   config.DBConfig
		driver string
	}{
		{"string", `db: my.json`, config.DBConfig{Name: "my.json"}, "json"},
		{"sqlite by extension", `db: my.db`, config.DBConfig{Name: "my.db"}, "sqlite"},
		{"mapping", "db:\n  name: x.json\n  removeExisting: true", config.DBConfig{Name: "x.json", RemoveExisting: true}, "json"},
		{"mapping without name", "db:\n  removeExisting: true", config.DBConfig{Name: "immitate.db.json", RemoveExisting: true}, "json"},
		{"explicit driver", "db:\n  name: x.json\n  driver: memory", config.DBConfig{Name: "x.json"}, "memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeConfig(t, tt.db+"\nmodels:\n  A:\n    routes: [ALL]\n    schema:\n      x: String\n"))
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if cfg.DB.Name != tt.want.Name || cfg.DB.RemoveExisting != tt.want.RemoveExisting || cfg.DB.Driver != tt.driver {
				t.Errorf("DB = %+v, want %+v driver %s", cfg.DB, tt.want, tt.driver)
			}
		})
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "immitate.json", `{
  "port": 5000,
  "db": {"name": "x.json", "driver": "memory"},
  "models": {
    "Item": {
      "routes": ["CREATE", "GET"],
      "schema": {
        "qty": {"type": "Integer", "gte": 0},
        "label": "String"
      }
    }
  }
}`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 5000 || cfg.DB.Driver != "memory" {
		t.Errorf("cfg = %+v", cfg)
	}
	item := cfg.Models[0]
	if got := item.Schema.Names(); !reflect.DeepEqual(got, []string{"qty", "label"}) {
		t.Errorf("fields = %v", got)
	}
	qty, _ := item.Schema.Lookup("qty")
	if it := qty.(*schema.Item); it.Gte == nil || *it.Gte != 0 {
		t.Errorf("qty = %+v", it)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "immitate.toml", `
port = 4000

[db]
name = "store.sqlite"
removeExisting = true

[models.Zebra]
timestamps = true
routes = ["ALL"]

[models.Zebra.schema]
name = { type = "String", required = true, range = { from = 2, to = 20 } }
age = "Integer"

[models.Apple]
routes = ["GET"]

[models.Apple.schema]
color = "String"
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 4000 || cfg.DB.Driver != "sqlite" || !cfg.DB.RemoveExisting {
		t.Errorf("cfg = %+v / %+v", cfg.Server, cfg.DB)
	}
	if got := modelNames(cfg); !reflect.DeepEqual(got, []string{"Zebra", "Apple"}) {
		t.Errorf("models = %v, want declaration order [Zebra Apple]", got)
	}
	zebra := cfg.Models[0]
	if got := zebra.Schema.Names(); !reflect.DeepEqual(got, []string{"name", "age"}) {
		t.Errorf("fields = %v", got)
	}
	name, _ := zebra.Schema.Lookup("name")
	if it := name.(*schema.Item); !it.Required || it.Range == nil || it.Range.To != 20 {
		t.Errorf("name = %+v", it)
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := config.Load(writeFile(t, "immitate.ini", "x=1"))
	if err == nil || !strings.Contains(err.Error(), "unsupported config format") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", err)
	}
}

func TestLoad_StructuralErrors(t *testing.T) {
	model := func(body string) string {
		return "models:\n  User:\n" + body
	}

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown data type", model("    routes: [ALL]\n    schema:\n      phone: Bool\n"), "models.User.schema.phone"},
		{"unknown verb", model("    routes: [LIST]\n    schema:\n      a: String\n"), "models.User.routes.0"},
		{"misspelled model key", model("    timetsmaps: true\n    routes: [ALL]\n    schema:\n      a: String\n"), "timetsmaps"},
		{"unknown item key", model("    routes: [ALL]\n    schema:\n      a: { type: String, unique: true }\n"), "unique"},
		{"range without to", model("    routes: [ALL]\n    schema:\n      a: { type: String, range: { from: 1 } }\n"), "models.User.schema.a.range"},
		{"missing schema", model("    routes: [ALL]\n"), "schema"},
		{"unknown top level key", "upstream: x\n" + model("    routes: [ALL]\n    schema:\n      a: String\n"), "upstream"},
		{"bad log level", "logging:\n  level: loud\n" + model("    routes: [ALL]\n    schema:\n      a: String\n"), "logging.level"},
		{"bad duration", "server:\n  read_timeout: soon\n" + model("    routes: [ALL]\n    schema:\n      a: String\n"), "server.read_timeout"},
		{"not a mapping", "- a\n- b\n", "must be a mapping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_SemanticErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no models", "port: 8080\n", "at least one model is required"},
		{"empty file", "", "at least one model is required"},
		{
			"duplicate resource",
			"models:\n  A:\n    resource: things\n    routes: [ALL]\n    schema:\n      x: String\n" +
				"  B:\n    resource: things\n    routes: [ALL]\n    schema:\n      x: String\n",
			"path /things already served by model A",
		},
		{"reserved health", "models:\n  A:\n    resource: health\n    schema:\n      x: String\n", "reserved"},
		{"reserved underscore", "models:\n  A:\n    resource: _stats\n    schema:\n      x: String\n", "reserved"},
		{"reserved metrics", "models:\n  Metrics:\n    schema:\n      x: String\n", "reserved"},
		{"invalid resource", "models:\n  A:\n    resource: a/b\n    schema:\n      x: String\n", "invalid resource"},
		{"bad timezone", "server:\n  timezone: Mars/Olympus\nmodels:\n  A:\n    schema:\n      x: String\n", "server.timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MetricsPathFreedWhenDisabled(t *testing.T) {
	_, err := config.Load(writeConfig(t, "metrics:\n  enabled: false\nmodels:\n  Metrics:\n    schema:\n      x: String\n"))
	if err != nil {
		t.Errorf("Load error: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("IMMITATE_TEST_DB", "expanded.json")

	cfg, err := config.Load(writeConfig(t, "db: ${IMMITATE_TEST_DB}\nmodels:\n  A:\n    schema:\n      x: String\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DB.Name != "expanded.json" {
		t.Errorf("DB.Name = %q", cfg.DB.Name)
	}
}

func TestLoad_EnvExpansionBracedOnly(t *testing.T) {
	t.Setenv("HOME", "/home/someone")

	cfg, err := config.Load(writeConfig(t, `models:
  Invoice:
    schema:
      price:
        type: String
        default: "$100"
      note:
        type: String
        default: "pay $HOME later"
      owner:
        type: String
        default: "${HOME}"
`))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	m, ok := cfg.Models.Lookup("Invoice")
	if !ok {
		t.Fatal("Invoice model missing")
	}

	want := map[string]any{
		"price": "$100",
		"note":  "pay $HOME later",
		"owner": "/home/someone",
	}
	for name, value := range want {
		item, ok := m.Schema.Lookup(name)
		if !ok {
			t.Fatalf("field %s missing", name)
		}
		leaf, ok := item.(*schema.Item)
		if !ok {
			t.Fatalf("field %s is %T, want *schema.Item", name, item)
		}
		if leaf.Default != value {
			t.Errorf("%s default = %#v, want %#v", name, leaf.Default, value)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("IMMITATE_SERVER_PORT", "9999")
	t.Setenv("IMMITATE_DB_DRIVER", "sqlite")
	t.Setenv("IMMITATE_DB_RESET", "yes")
	t.Setenv("IMMITATE_IDS_FORMAT", "uuid")
	t.Setenv("IMMITATE_METRICS_ENABLED", "false")
	t.Setenv("IMMITATE_OPENAPI_ENABLED", "0")
	t.Setenv("IMMITATE_LOG_FORMAT", "json")

	cfg, err := config.Load(writeConfig(t, validConfig()))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, env should win over the file", cfg.Server.Port)
	}
	if cfg.DB.Driver != "sqlite" || !cfg.DB.RemoveExisting || cfg.IDs.Format != "uuid" {
		t.Errorf("db = %+v ids = %+v", cfg.DB, cfg.IDs)
	}
	if cfg.Metrics.On() || cfg.OpenAPI.On() || cfg.Logging.Format != "json" {
		t.Errorf("metrics/openapi/logging = %v %v %s", cfg.Metrics.On(), cfg.OpenAPI.On(), cfg.Logging.Format)
	}
}

func TestLoad_EnvOverrideValidated(t *testing.T) {
	t.Setenv("IMMITATE_LOG_LEVEL", "loud")

	_, err := config.Load(writeConfig(t, validConfig()))
	if err == nil || !strings.Contains(err.Error(), `logging.level must be one of [debug info warn error], got "loud"`) {
		t.Errorf("err = %v", err)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	cfg, err := config.LoadWithOverrides(writeConfig(t, validConfig()), config.Overrides{
		Port:   7000,
		DBName: "cli.db",
		Reset:  true,
	})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 7000 || cfg.DB.Name != "cli.db" || !cfg.DB.RemoveExisting {
		t.Errorf("cfg = %+v / %+v", cfg.Server, cfg.DB)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("driver = %s, want sqlite from the .db extension", cfg.DB.Driver)
	}
}

func TestTemplates(t *testing.T) {
	names := config.Templates()
	if !reflect.DeepEqual(names, []string{config.TemplateECommerce, config.TemplateSocialMedia}) {
		t.Fatalf("Templates() = %v", names)
	}

	tests := []struct {
		template string
		models   []string
		reset    bool
	}{
		{config.TemplateECommerce, []string{"User", "Product", "Orders"}, true},
		{config.TemplateSocialMedia, []string{"User", "Post", "Comment"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			cfg, err := config.LoadWithFallback("", config.Overrides{Template: tt.template})
			if err != nil {
				t.Fatalf("LoadWithFallback error: %v", err)
			}
			if got := modelNames(cfg); !reflect.DeepEqual(got, tt.models) {
				t.Errorf("models = %v, want %v", got, tt.models)
			}
			if cfg.DB.RemoveExisting != tt.reset {
				t.Errorf("removeExisting = %v, want %v", cfg.DB.RemoveExisting, tt.reset)
			}
			for _, m := range cfg.Models {
				if !m.Timestamps || len(m.ExposedVerbs()) != 7 {
					t.Errorf("model %s: timestamps %v verbs %v", m.Name, m.Timestamps, m.ExposedVerbs())
				}
			}
		})
	}
}

func TestTemplate_CommentSchemaIsFlat(t *testing.T) {
	cfg, err := config.LoadWithFallback("", config.Overrides{Template: config.TemplateSocialMedia})
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	comment, _ := cfg.Models.Lookup("Comment")
	if got := comment.Schema.Names(); !reflect.DeepEqual(got, []string{"title", "postId", "upvotes", "downvotes"}) {
		t.Errorf("comment fields = %v", got)
	}
	upvotes, _ := comment.Schema.Lookup("upvotes")
	if it := upvotes.(*schema.Item); !it.HasDefault || it.Default != 0.0 {
		t.Errorf("upvotes = %+v", it)
	}
}

func TestTemplate_MergedWithFileModels(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
template: e-commerce
models:
  Product:
    routes: [GET]
    schema:
      title: String
  Review:
    routes: [ALL]
    schema:
      body: String
`))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := modelNames(cfg); !reflect.DeepEqual(got, []string{"User", "Product", "Orders", "Review"}) {
		t.Errorf("models = %v", got)
	}
	product, _ := cfg.Models.Lookup("Product")
	if len(product.ExposedVerbs()) != 1 || product.Schema.Has("price") {
		t.Errorf("file model should replace the template model: %+v", product)
	}
	if !cfg.DB.RemoveExisting {
		t.Error("template db settings should apply when the file declares no db")
	}

	cfg, err = config.Load(writeConfig(t, "template: e-commerce\ndb: mine.json\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DB.RemoveExisting || cfg.DB.Name != "mine.json" {
		t.Errorf("declared db should win: %+v", cfg.DB)
	}
}

func TestTemplate_Unknown(t *testing.T) {
	_, err := config.LoadWithFallback("", config.Overrides{Template: "blog"})
	if err == nil || !strings.Contains(err.Error(), `unknown template "blog"`) {
		t.Errorf("err = %v", err)
	}
}

func TestLoadWithFallback(t *testing.T) {
	path := writeConfig(t, validConfig())
	cfg, err := config.LoadWithFallback(path, config.Overrides{})
	if err != nil || cfg.Server.Port != 3000 {
		t.Fatalf("existing file: cfg = %v, err = %v", cfg, err)
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := config.LoadWithFallback(missing, config.Overrides{}); !errors.Is(err, config.ErrNoConfig) {
		t.Errorf("err = %v, want ErrNoConfig", err)
	}

	t.Setenv("IMMITATE_TEMPLATE", config.TemplateSocialMedia)
	cfg, err = config.LoadWithFallback(missing, config.Overrides{})
	if err != nil {
		t.Fatalf("env template: %v", err)
	}
	if _, ok := cfg.Models.Lookup("Post"); !ok {
		t.Error("env template not applied")
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want config.Format
		ok   bool
	}{
		{"a.yaml", config.FormatYAML, true},
		{"a.YML", config.FormatYAML, true},
		{"dir/a.json", config.FormatJSON, true},
		{"a.toml", config.FormatTOML, true},
		{"a.conf", "", false},
	}
	for _, tt := range tests {
		got, err := config.FormatOf(tt.path)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("FormatOf(%s) = %q, %v", tt.path, got, err)
		}
	}
}

func TestSchemaDocument(t *testing.T) {
	var doc map[string]any
	if err := json.Unmarshal(config.Schema(), &doc); err != nil {
		t.Fatalf("config schema is not valid JSON: %v", err)
	}
	if doc["type"] != "object" {
		t.Errorf("schema type = %v", doc["type"])
	}
}
