package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/artpar/immitate/core/convention"
)

// TableFormatter formats output as aligned text tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// FormatList formats the entities as a table, one row each.
func (f *TableFormatter) FormatList(w io.Writer, m convention.Derived, records []map[string]any, opts Options) error {
	if len(records) == 0 {
		fmt.Fprintf(w, "No %s found.\n", m.Resource)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	columns := Columns(m, opts.Columns)

	if !opts.NoHeader {
		headers := make([]string, len(columns))
		for i, col := range columns {
			headers[i] = strings.ToUpper(col)
		}
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}

	for _, record := range records {
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = formatValue(record[col], opts.MaxWidth)
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}

	return tw.Flush()
}

// FormatRecord formats a single entity as key-value pairs.
func (f *TableFormatter) FormatRecord(w io.Writer, m convention.Derived, record map[string]any, opts Options) error {
	if record == nil {
		fmt.Fprintf(w, "%s not found.\n", m.Title)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, col := range Columns(m, opts.Columns) {
		fmt.Fprintf(tw, "%s:\t%s\n", col, formatValue(record[col], 0))
	}
	return tw.Flush()
}

// formatValue formats a cell. Absent and null values read as "-".
func formatValue(val any, maxWidth int) string {
	var str string
	switch v := val.(type) {
	case nil:
		return "-"
	case string:
		str = v
	case bool:
		str = strconv.FormatBool(v)
	case float64:
		str = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, _ := json.Marshal(v)
		str = string(b)
	}

	if maxWidth > 3 && utf8.RuneCountInString(str) > maxWidth {
		str = string([]rune(str)[:maxWidth-3]) + "..."
	}
	return str
}
