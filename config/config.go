// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/immitate/core/convention"
	"github.com/artpar/immitate/core/schema"
	"github.com/artpar/immitate/core/storage"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	// Port is the top-level shorthand for server.port.
	Port int `yaml:"port"`

	// Template names a built-in model set merged under Models.
	Template string `yaml:"template"`

	DB      DBConfig      `yaml:"db"`
	IDs     IDConfig      `yaml:"ids"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	OpenAPI OpenAPIConfig `yaml:"openapi"`
	Models  Models        `yaml:"models" validate:"min=1"`
}

// DBConfig configures the persisted store document. It decodes from a bare
// file name or from a mapping.
type DBConfig struct {
	Name           string `yaml:"name" validate:"required"`
	RemoveExisting bool   `yaml:"removeExisting"`
	Driver         string `yaml:"driver" validate:"oneof=json sqlite memory"`

	declared bool
}

// UnmarshalYAML accepts both `db: file.json` and the mapping form.
func (d *DBConfig) UnmarshalYAML(value *yaml.Node) error {
	d.declared = true
	if value.Kind == yaml.ScalarNode {
		d.Name = value.Value
		return nil
	}
	type plain DBConfig
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = DBConfig(p)
	d.declared = true
	return nil
}

// IDConfig selects the entity id format.
type IDConfig struct {
	Format string `yaml:"format" validate:"oneof=hex uuid"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host" validate:"required"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Timezone is the IANA zone used for createdAt/updatedAt; "Local" or
	// empty means the host zone.
	Timezone string `yaml:"timezone"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"` // default: true
	Path    string `yaml:"path" validate:"startswith=/"`
}

// On reports whether /metrics is served.
func (m MetricsConfig) On() bool {
	return m.Enabled == nil || *m.Enabled
}

// OpenAPIConfig configures the OpenAPI document and Swagger UI.
type OpenAPIConfig struct {
	Enabled     *bool  `yaml:"enabled"` // default: true
	Title       string `yaml:"title"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// On reports whether the OpenAPI endpoints are served.
func (o OpenAPIConfig) On() bool {
	return o.Enabled == nil || *o.Enabled
}

// Models is the model list in declaration order.
type Models []schema.Model

// UnmarshalYAML decodes the models mapping, keeping key order and setting
// each model's name from its key.
func (m *Models) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: models must be a mapping", value.Line)
	}
	out := make(Models, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var model schema.Model
		if err := value.Content[i+1].Decode(&model); err != nil {
			return fmt.Errorf("model %s: %w", name, err)
		}
		model.Name = name
		out = append(out, model)
	}
	*m = out
	return nil
}

// Lookup returns the model named name.
func (m Models) Lookup(name string) (schema.Model, bool) {
	for _, model := range m {
		if model.Name == name {
			return model, true
		}
	}
	return schema.Model{}, false
}

// Derived resolves every model's conventional names.
func (c *Config) Derived() []convention.Derived {
	out := make([]convention.Derived, len(c.Models))
	for i, m := range c.Models {
		out[i] = convention.Derive(m)
	}
	return out
}

// Overrides are command line settings applied on top of the file and the
// environment.
type Overrides struct {
	Template string
	Port     int
	DBName   string
	DBDriver string
	Reset    bool
}

// ErrNoConfig is returned by LoadWithFallback when there is neither a
// config file nor a template to start from.
var ErrNoConfig = errors.New("no configuration found: provide a config file or a template")

// Load reads configuration from a YAML, JSON or TOML file.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, Overrides{})
}

// LoadWithOverrides reads configuration from a file and applies ov.
func LoadWithOverrides(path string, ov Overrides) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, format, ov)
}

// LoadWithFallback loads the file at path when it exists, and otherwise
// builds the configuration from the template named by ov or
// IMMITATE_TEMPLATE.
func LoadWithFallback(path string, ov Overrides) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadWithOverrides(path, ov)
		}
	}

	if ov.Template != "" || os.Getenv("IMMITATE_TEMPLATE") != "" {
		return finish(&Config{}, ov)
	}
	return nil, ErrNoConfig
}

// Parse decodes configuration data in the given format and runs the full
// pipeline: environment expansion, structural validation, typed decode,
// environment and command line overrides, template merge, defaults and
// validation.
func Parse(data []byte, format Format, ov Overrides) (*Config, error) {
	data = expandEnv(data)

	cfg, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	return finish(cfg, ov)
}

// envRef matches the braced ${NAME} form only. Bare $NAME is left alone so
// literal dollar signs in model defaults survive.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// decode parses and structurally validates a document into a Config.
func decode(data []byte, format Format) (*Config, error) {
	doc, err := parseDocument(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if doc == nil {
		return &cfg, nil
	}
	if err := checkStructure(doc); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := doc.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func finish(cfg *Config, ov Overrides) (*Config, error) {
	applyEnvOverrides(cfg)
	applyOverrides(cfg, ov)

	if cfg.Template != "" {
		if err := mergeTemplate(cfg); err != nil {
			return nil, err
		}
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies IMMITATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("IMMITATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("IMMITATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("IMMITATE_SERVER_TIMEZONE"); v != "" {
		cfg.Server.Timezone = v
	}

	// Store configuration
	if v := os.Getenv("IMMITATE_DB_NAME"); v != "" {
		cfg.DB.Name = v
	}
	if v := os.Getenv("IMMITATE_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("IMMITATE_DB_RESET"); v != "" {
		cfg.DB.RemoveExisting = parseBool(v)
	}
	if v := os.Getenv("IMMITATE_IDS_FORMAT"); v != "" {
		cfg.IDs.Format = v
	}

	// Logging configuration
	if v := os.Getenv("IMMITATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IMMITATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("IMMITATE_METRICS_ENABLED"); v != "" {
		on := parseBool(v)
		cfg.Metrics.Enabled = &on
	}
	if v := os.Getenv("IMMITATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI configuration
	if v := os.Getenv("IMMITATE_OPENAPI_ENABLED"); v != "" {
		on := parseBool(v)
		cfg.OpenAPI.Enabled = &on
	}

	if v := os.Getenv("IMMITATE_TEMPLATE"); v != "" {
		cfg.Template = v
	}
}

func applyOverrides(cfg *Config, ov Overrides) {
	if ov.Template != "" {
		cfg.Template = ov.Template
	}
	if ov.Port != 0 {
		cfg.Server.Port = ov.Port
	}
	if ov.DBName != "" {
		cfg.DB.Name = ov.DBName
	}
	if ov.DBDriver != "" {
		cfg.DB.Driver = ov.DBDriver
	}
	if ov.Reset {
		cfg.DB.RemoveExisting = true
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = cfg.Port
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	cfg.Port = cfg.Server.Port
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.DB.Name == "" {
		cfg.DB.Name = storage.DefaultPath
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = driverFor(cfg.DB.Name)
	}

	if cfg.IDs.Format == "" {
		cfg.IDs.Format = "hex"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// driverFor picks the store driver from the database file extension.
func driverFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	}
	return "json"
}
