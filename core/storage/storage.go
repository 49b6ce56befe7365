// Package storage holds the collection store: an in-memory document of
// entity collections keyed by model name, written through to a Persister
// after every mutation.
//
// The store serialises every public operation behind one mutex. A mutation
// builds the next document copy-on-write, saves it, and only then replaces
// the current one, so a failed save leaves readers on the last good state.
// Saves are whole-document writes with no fsync; a crash between a mutation
// and its save loses that mutation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entity is one stored JSON object.
type Entity = map[string]any

// Document maps a model name to its collection, in insertion order.
type Document map[string][]Entity

// clone copies the collection map. Collections are shared with the
// receiver and must be replaced, not modified, in the copy.
func (d Document) clone() Document {
	next := make(Document, len(d)+1)
	for k, v := range d {
		next[k] = v
	}
	return next
}

// Persister loads and saves the whole store document.
type Persister interface {
	// Load returns the saved document, ErrNoDocument if nothing was saved
	// yet, or an error wrapping ErrCorrupt if the saved data is unreadable.
	Load(ctx context.Context) (Document, error)

	// Save replaces the saved document.
	Save(ctx context.Context, doc Document) error

	// Location describes where the document lives, for logs.
	Location() string
}

// IDGenerator generates entity ids.
type IDGenerator interface {
	New() string
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// TimestampLayout formats createdAt/updatedAt, e.g. "6/15/2024, 1:05:09 PM".
const TimestampLayout = "1/2/2006, 3:04:05 PM"

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrNoDocument is returned by Persister.Load when nothing is saved.
	ErrNoDocument = errors.New("no saved document")

	// ErrCorrupt is wrapped by Persister.Load when saved data cannot be decoded.
	ErrCorrupt = errors.New("corrupt document")
)

// NotFoundError reports a missing collection or entity.
type NotFoundError struct {
	Model string
	ID    string
	msg   string
}

func notFound(model, id, format string, args ...any) *NotFoundError {
	return &NotFoundError{Model: model, ID: id, msg: fmt.Sprintf(format, args...)}
}

func (e *NotFoundError) Error() string {
	return e.msg
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Result is the outcome of a delete.
type Result struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}
