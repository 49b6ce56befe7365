// Package memory provides an in-memory store persister, used by the
// "memory" database driver and by tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/artpar/immitate/core/storage"
	"github.com/mohae/deepcopy"
)

// ErrSaveFailed is returned by Save after FailSaves.
var ErrSaveFailed = errors.New("memory: save failed")

// Document keeps the last saved store document in memory.
type Document struct {
	mu    sync.Mutex
	doc   storage.Document
	saved bool
	saves int
	fail  error
}

// NewDocument creates an empty persister with nothing saved.
func NewDocument() *Document {
	return &Document{}
}

// Seed creates a persister that already holds doc, as if it had been saved.
func Seed(doc storage.Document) *Document {
	d := &Document{}
	d.doc = clone(doc)
	d.saved = true
	return d
}

// Location implements storage.Persister.
func (d *Document) Location() string {
	return "memory"
}

// Load returns a copy of the last saved document.
func (d *Document) Load(ctx context.Context) (storage.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.saved {
		return nil, storage.ErrNoDocument
	}
	return clone(d.doc), nil
}

// Save keeps a copy of doc.
func (d *Document) Save(ctx context.Context, doc storage.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fail != nil {
		return d.fail
	}
	d.doc = clone(doc)
	d.saved = true
	d.saves++
	return nil
}

// FailSaves makes every later Save return err, or ErrSaveFailed when err
// is nil. FailSaves(nil) after a failure does not clear it; use Recover.
func (d *Document) FailSaves(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = ErrSaveFailed
	}
	d.fail = err
}

// Recover makes Save succeed again.
func (d *Document) Recover() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = nil
}

// Saves returns the number of successful saves.
func (d *Document) Saves() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saves
}

// Snapshot returns a copy of the saved document, nil if nothing was saved.
func (d *Document) Snapshot() storage.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.saved {
		return nil
	}
	return clone(d.doc)
}

func clone(doc storage.Document) storage.Document {
	if doc == nil {
		return storage.Document{}
	}
	return deepcopy.Copy(doc).(storage.Document)
}

var _ storage.Persister = (*Document)(nil)
