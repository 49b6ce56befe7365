package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultPath is the document file used when none is configured.
const DefaultPath = "immitate.db.json"

// JSONFile persists the document as one JSON file. Saves write a sibling
// temporary file and rename it over the target; they do not fsync.
type JSONFile struct {
	path string
}

// NewJSONFile creates a persister for path.
func NewJSONFile(path string) *JSONFile {
	if path == "" {
		path = DefaultPath
	}
	return &JSONFile{path: path}
}

// Location returns the file path.
func (f *JSONFile) Location() string {
	return f.path
}

// Load reads and decodes the file.
func (f *JSONFile) Load(ctx context.Context) (Document, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return decodeDocument(f.path, data)
}

// Save encodes doc and replaces the file.
func (f *JSONFile) Save(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

// decodeDocument parses a saved document. A JSON null reads as empty.
func decodeDocument(source string, data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, source, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
