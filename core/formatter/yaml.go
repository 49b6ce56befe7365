package formatter

import (
	"io"

	"github.com/artpar/immitate/core/convention"
	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Name returns the formatter name.
func (f *YAMLFormatter) Name() string {
	return "yaml"
}

// FormatList formats the entities as a YAML document.
func (f *YAMLFormatter) FormatList(w io.Writer, m convention.Derived, records []map[string]any, opts Options) error {
	return f.encode(w, listEnvelope{
		Model: m.Title,
		Count: len(records),
		Data:  projectAll(records, opts.Columns),
	})
}

// FormatRecord formats a single entity as YAML.
func (f *YAMLFormatter) FormatRecord(w io.Writer, m convention.Derived, record map[string]any, opts Options) error {
	return f.encode(w, recordEnvelope{
		Model: m.Title,
		Data:  project(record, opts.Columns),
	})
}

func (f *YAMLFormatter) encode(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}
