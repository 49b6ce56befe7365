package config

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported config format %q: use .yaml, .yml, .json or .toml", filepath.Ext(path))
}

// parseDocument returns the root mapping of a document, or nil when the
// document is empty. JSON is read as YAML flow syntax so that both keep the
// declared key order.
func parseDocument(data []byte, format Format) (*yaml.Node, error) {
	switch format {
	case FormatYAML, FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if len(doc.Content) == 0 {
			return nil, nil
		}
		root := doc.Content[0]
		if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
			return nil, nil
		}
		if root.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: config must be a mapping", root.Line)
		}
		return root, nil
	case FormatTOML:
		return parseTOML(data)
	}
	return nil, fmt.Errorf("unsupported config format %q", format)
}

// parseTOML converts a TOML document into a YAML node tree, ordering every
// table's keys as they appear in the source.
func parseTOML(data []byte) (*yaml.Node, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	order := make(map[string]int)
	for i, key := range md.Keys() {
		path := strings.Join(key, "\x00")
		if _, ok := order[path]; !ok {
			order[path] = i
		}
	}
	return tomlNode(raw, nil, order)
}

func tomlNode(v any, path []string, order map[string]int) (*yaml.Node, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		position := func(k string) int {
			if i, ok := order[strings.Join(append(path[:len(path):len(path)], k), "\x00")]; ok {
				return i
			}
			return math.MaxInt
		}
		sort.SliceStable(keys, func(i, j int) bool {
			pi, pj := position(keys[i]), position(keys[j])
			if pi != pj {
				return pi < pj
			}
			return keys[i] < keys[j]
		})

		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range keys {
			child, err := tomlNode(t[k], append(path[:len(path):len(path)], k), order)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, scalar("!!str", k), child)
		}
		return node, nil

	case []map[string]any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range t {
			child, err := tomlNode(e, path, order)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil

	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range t {
			child, err := tomlNode(e, path, order)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil

	case string:
		return scalar("!!str", t), nil
	case bool:
		return scalar("!!bool", strconv.FormatBool(t)), nil
	case int64:
		return scalar("!!int", strconv.FormatInt(t, 10)), nil
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return nil, fmt.Errorf("%s: non-finite number", strings.Join(path, "."))
		}
		return scalar("!!float", strconv.FormatFloat(t, 'g', -1, 64)), nil
	case time.Time:
		return scalar("!!str", t.Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		// Local dates and times.
		return scalar("!!str", t.String()), nil
	}
	return nil, fmt.Errorf("%s: unsupported TOML value %T", strings.Join(path, "."), v)
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
