package formatter

import (
	"encoding/json"
	"io"

	"github.com/artpar/immitate/core/convention"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// FormatList formats the entities as a JSON envelope.
func (f *JSONFormatter) FormatList(w io.Writer, m convention.Derived, records []map[string]any, opts Options) error {
	return f.encode(w, listEnvelope{
		Model: m.Title,
		Count: len(records),
		Data:  projectAll(records, opts.Columns),
	}, opts.Compact)
}

// FormatRecord formats a single entity as JSON.
func (f *JSONFormatter) FormatRecord(w io.Writer, m convention.Derived, record map[string]any, opts Options) error {
	return f.encode(w, recordEnvelope{
		Model: m.Title,
		Data:  project(record, opts.Columns),
	}, opts.Compact)
}

func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

type listEnvelope struct {
	Model string           `json:"model" yaml:"model"`
	Count int              `json:"count" yaml:"count"`
	Data  []map[string]any `json:"data" yaml:"data"`
}

type recordEnvelope struct {
	Model string         `json:"model" yaml:"model"`
	Data  map[string]any `json:"data" yaml:"data"`
}
