package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchema []byte

var (
	compiledSchema *jsonschema.Schema
	compileErr     error
	compileOnce    sync.Once
)

// Schema returns the JSON Schema every configuration document must satisfy.
func Schema() []byte {
	return configSchema
}

func compileSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("config.schema.json", bytes.NewReader(configSchema)); err != nil {
			compileErr = fmt.Errorf("add config schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("config.schema.json")
	})
	return compiledSchema, compileErr
}

// checkStructure validates the raw document against the config schema.
func checkStructure(doc *yaml.Node) error {
	sch, err := compileSchema()
	if err != nil {
		return err
	}

	var raw any
	if err := doc.Decode(&raw); err != nil {
		return err
	}
	// Round trip through JSON so numbers and maps take the shapes the
	// validator expects.
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}
	var instance any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return err
	}

	if err := sch.Validate(instance); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return structureError(ve)
		}
		return err
	}
	return nil
}

// structureError reports the leaf failures of a validation error, one per
// line, ordered by location.
func structureError(ve *jsonschema.ValidationError) error {
	var leaves []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := strings.TrimPrefix(e.InstanceLocation, "/")
			if loc == "" {
				loc = "(root)"
			}
			leaves = append(leaves, fmt.Sprintf("%s: %s", strings.ReplaceAll(loc, "/", "."), e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	sort.Strings(leaves)
	leaves = dedupe(leaves)
	return errors.New(strings.Join(leaves, "; "))
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
