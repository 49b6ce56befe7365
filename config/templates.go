package config

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Built-in templates.
const (
	TemplateECommerce   = "e-commerce"
	TemplateSocialMedia = "social-media"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// Templates lists the built-in template names.
func Templates() []string {
	entries, _ := fs.ReadDir(templateFS, "templates")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// TemplateSource returns the YAML source of a built-in template.
func TemplateSource(name string) ([]byte, error) {
	data, err := templateFS.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown template %q (available: %s)", name, strings.Join(Templates(), ", "))
	}
	return data, nil
}

// mergeTemplate merges the models of cfg.Template under the configured
// ones. A configured model replaces the template model of the same name.
// The template's db settings apply only when the config declares no db.
func mergeTemplate(cfg *Config) error {
	src, err := TemplateSource(cfg.Template)
	if err != nil {
		return err
	}
	tpl, err := decode(src, FormatYAML)
	if err != nil {
		return fmt.Errorf("template %s: %w", cfg.Template, err)
	}

	merged := make(Models, 0, len(tpl.Models)+len(cfg.Models))
	for _, m := range tpl.Models {
		if own, ok := cfg.Models.Lookup(m.Name); ok {
			m = own
		}
		merged = append(merged, m)
	}
	for _, m := range cfg.Models {
		if _, ok := tpl.Models.Lookup(m.Name); !ok {
			merged = append(merged, m)
		}
	}
	cfg.Models = merged

	if !cfg.DB.declared {
		cfg.DB.RemoveExisting = cfg.DB.RemoveExisting || tpl.DB.RemoveExisting
		if cfg.DB.Name == "" {
			cfg.DB.Name = tpl.DB.Name
		}
		if cfg.DB.Driver == "" {
			cfg.DB.Driver = tpl.DB.Driver
		}
	}
	return nil
}
