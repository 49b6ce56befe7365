// Package formatter renders stored entities for the command line.
// Formatters register themselves by name; the CLI picks one with --output.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/artpar/immitate/core/convention"
	"github.com/artpar/immitate/core/schema"
)

// Formatter converts entities to a specific output format.
type Formatter interface {
	// Name returns the formatter name (e.g., "table", "json", "yaml").
	Name() string

	// FormatList formats the entities of one model.
	FormatList(w io.Writer, m convention.Derived, records []map[string]any, opts Options) error

	// FormatRecord formats a single entity. A nil record means not found.
	FormatRecord(w io.Writer, m convention.Derived, record map[string]any, opts Options) error
}

// Options configures formatting behavior.
type Options struct {
	// Columns restricts output to these keys (nil = every declared field).
	Columns []string

	// NoHeader disables the header row for tabular formats.
	NoHeader bool

	// Compact minimizes whitespace (json).
	Compact bool

	// MaxWidth truncates long cell values (0 = no limit).
	MaxWidth int
}

// Columns returns the keys shown for m: the requested ones, or else id,
// the top-level schema fields and the timestamps.
func Columns(m convention.Derived, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	columns := append([]string{schema.FieldID}, m.Source.Schema.Names()...)
	if m.Source.Timestamps {
		columns = append(columns, schema.FieldCreatedAt, schema.FieldUpdatedAt)
	}
	return columns
}

// project keeps the listed keys of record. Without columns the record is
// returned whole.
func project(record map[string]any, columns []string) map[string]any {
	if len(columns) == 0 || record == nil {
		return record
	}
	out := make(map[string]any, len(columns))
	for _, col := range columns {
		if v, ok := record[col]; ok {
			out[col] = v
		}
	}
	return out
}

func projectAll(records []map[string]any, columns []string) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = project(r, columns)
	}
	return out
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
	defaultFmt string
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
		defaultFmt: "table",
	}
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}
	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[name]
	return f, ok
}

// Default returns the default formatter, or nil when none is registered.
func (r *Registry) Default() Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.formatters[r.defaultFmt]
}

// SetDefault sets the default formatter.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[name]; !exists {
		return fmt.Errorf("formatter %q not registered", name)
	}
	r.defaultFmt = name
	return nil
}

// List returns the registered formatter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// List returns all formatter names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}

func init() {
	DefaultRegistry.Register(NewTableFormatter())
	DefaultRegistry.Register(NewJSONFormatter())
	DefaultRegistry.Register(NewYAMLFormatter())
}
