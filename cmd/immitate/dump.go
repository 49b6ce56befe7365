package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/artpar/immitate/bootstrap"
	"github.com/artpar/immitate/config"
	"github.com/artpar/immitate/core/convention"
	"github.com/artpar/immitate/core/formatter"
	"github.com/artpar/immitate/core/schema"
	"github.com/artpar/immitate/core/storage"
	"github.com/spf13/cobra"
)

var dumpOpts struct {
	template string
	output   string
	columns  []string
	id       string
	noHeader bool
	width    int
}

var dumpCmd = &cobra.Command{
	Use:   "dump [model]",
	Short: "Print stored entities",
	Long: `Print the entities saved in the store, for every model or for one.
The model may be given by name or by resource.

Examples:
  immitate dump
  immitate dump users --output json
  immitate dump User --id 5f2b9c --columns id,name,email`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	f := dumpCmd.Flags()
	f.StringVarP(&dumpOpts.template, "template", "t", "", "built-in template merged under the file")
	f.StringVarP(&dumpOpts.output, "output", "o", "table", "output format: "+strings.Join(formatter.List(), ", "))
	f.StringSliceVar(&dumpOpts.columns, "columns", nil, "fields to print")
	f.StringVar(&dumpOpts.id, "id", "", "print only the entity with this id")
	f.BoolVar(&dumpOpts.noHeader, "no-header", false, "omit the table header")
	f.IntVar(&dumpOpts.width, "max-width", 40, "truncate table cells to this width (0 = no limit)")
}

func runDump(cmd *cobra.Command, args []string) error {
	f, ok := formatter.Get(dumpOpts.output)
	if !ok {
		return fmt.Errorf("unknown output format %q (available: %s)", dumpOpts.output, strings.Join(formatter.List(), ", "))
	}

	cfg, err := config.LoadWithFallback(cfgFile, config.Overrides{Template: dumpOpts.template})
	if err != nil {
		return err
	}

	models := cfg.Derived()
	if len(args) == 1 {
		m, ok := findModel(models, args[0])
		if !ok {
			return fmt.Errorf("unknown model %q", args[0])
		}
		models = []convention.Derived{m}
	}

	doc, err := loadDocument(cmd.Context(), cfg.DB)
	if err != nil {
		return err
	}

	opts := formatter.Options{
		Columns:  dumpOpts.columns,
		NoHeader: dumpOpts.noHeader,
		MaxWidth: dumpOpts.width,
	}
	out := cmd.OutOrStdout()
	for i, m := range models {
		if i > 0 && f.Name() == "table" {
			fmt.Fprintln(out)
		}
		if err := dumpModel(out, f, m, doc[m.Source.Name], opts); err != nil {
			return err
		}
	}
	return nil
}

func dumpModel(w io.Writer, f formatter.Formatter, m convention.Derived, entities []storage.Entity, opts formatter.Options) error {
	if dumpOpts.id == "" {
		if f.Name() == "table" {
			fmt.Fprintf(w, "%s (%d)\n", m.BasePath, len(entities))
		}
		return f.FormatList(w, m, entities, opts)
	}

	for _, e := range entities {
		if id, _ := e[schema.FieldID].(string); id == dumpOpts.id {
			return f.FormatRecord(w, m, e, opts)
		}
	}
	return f.FormatRecord(w, m, nil, opts)
}

func findModel(models []convention.Derived, name string) (convention.Derived, bool) {
	for _, m := range models {
		if strings.EqualFold(m.Source.Name, name) || m.Resource == name {
			return m, true
		}
	}
	return convention.Derived{}, false
}

// loadDocument reads the saved store without opening it for writes.
func loadDocument(ctx context.Context, db config.DBConfig) (storage.Document, error) {
	p, err := bootstrap.OpenPersister(db)
	if err != nil {
		return nil, err
	}
	if c, ok := p.(io.Closer); ok {
		defer c.Close()
	}

	doc, err := p.Load(ctx)
	if errors.Is(err, storage.ErrNoDocument) {
		return storage.Document{}, nil
	}
	return doc, err
}
