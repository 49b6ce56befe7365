package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/immitate/core/convention"
	"github.com/artpar/immitate/core/events"
	"github.com/artpar/immitate/core/query"
	"github.com/artpar/immitate/core/schema"
	"github.com/rs/zerolog"
)

// Options configures a Store.
type Options struct {
	// Clock stamps createdAt/updatedAt. Defaults to the local wall clock.
	Clock Clock

	// Bus receives an event after every successful mutation. Optional.
	Bus *events.Bus

	Logger zerolog.Logger
}

// Store is the collection store. Create one per server instance.
type Store struct {
	mu     sync.Mutex
	doc    Document
	opened atomic.Bool

	persister Persister
	ids       IDGenerator
	clock     Clock
	bus       *events.Bus
	logger    zerolog.Logger
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// New creates a store writing through to persister. Call Open before use.
func New(persister Persister, ids IDGenerator, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = wallClock{}
	}
	return &Store{
		doc:       Document{},
		persister: persister,
		ids:       ids,
		clock:     opts.Clock,
		bus:       opts.Bus,
		logger:    opts.Logger,
	}
}

// Open seeds the store from the persister. With reset, or when nothing was
// saved yet, or when the saved document is corrupt, the store starts empty
// and the empty document is saved immediately.
func (s *Store) Open(ctx context.Context, reset bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc := s.persister.Location()
	if reset {
		s.logger.Warn().Str("db", loc).Msg("removing previous data")
	} else {
		doc, err := s.persister.Load(ctx)
		switch {
		case err == nil:
			s.doc = doc
			s.opened.Store(true)
			s.logger.Info().Str("db", loc).Int("models", len(doc)).Msg("store loaded")
			return nil
		case errors.Is(err, ErrNoDocument):
			s.logger.Info().Str("db", loc).Msg("store created")
		case errors.Is(err, ErrCorrupt):
			s.logger.Error().Err(err).Str("db", loc).Msg("failed to read previous data, resetting")
		default:
			return fmt.Errorf("load store: %w", err)
		}
	}

	if err := s.persister.Save(ctx, Document{}); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	s.doc = Document{}
	s.opened.Store(true)
	return nil
}

// Ready reports whether Open has completed.
func (s *Store) Ready() bool {
	return s.opened.Load()
}

// Close releases the persister if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.persister.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Stats returns the entity count of every collection.
func (s *Store) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int, len(s.doc))
	for name, coll := range s.doc {
		counts[name] = len(coll)
	}
	return counts
}

// FindAll returns the model's entities matching every filter, in insertion
// order. An unknown model yields an empty slice.
func (s *Store) FindAll(ctx context.Context, model string, filters map[string]string) []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.doc[model]
	if len(filters) > 0 {
		coll = query.Filter(coll, filters)
	}
	return copyCollection(coll)
}

// FindByID returns the entity with the given id.
func (s *Store) FindByID(ctx context.Context, model, id string) (Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.doc[model], id); i >= 0 {
		return copyEntity(s.doc[model][i]), nil
	}
	return nil, notFound(model, id, "Could not find %s with id = %s", convention.Capitalize(model), id)
}

// Create stores a new entity built from body: a copy of the body with
// defaults (and, if the model fills nulls, nulls) filled in, a fresh id,
// and timestamps when the model keeps them. body is not modified.
func (s *Store) Create(ctx context.Context, model schema.Model, body map[string]any) (Entity, error) {
	entity := copyEntity(body)
	autofill(model.Schema, entity, model.FillsNulls())
	entity[schema.FieldID] = s.ids.New()
	if model.Timestamps {
		now := s.timestamp()
		entity[schema.FieldCreatedAt] = now
		entity[schema.FieldUpdatedAt] = now
	}

	err := s.mutate(ctx, func(next Document) error {
		coll := next[model.Name]
		grown := make([]Entity, len(coll), len(coll)+1)
		copy(grown, coll)
		next[model.Name] = append(grown, entity)
		return nil
	})
	if err != nil {
		return nil, err
	}

	id, _ := entity[schema.FieldID].(string)
	s.logger.Debug().Str("model", model.Name).Str("id", id).Msg("entity created")
	s.publish(ctx, events.Event{Model: model.Name, Action: events.ActionCreated, ID: id, Count: 1, Data: copyEntity(entity)})
	return copyEntity(entity), nil
}

// Update deep-merges patch into every entity matching filters (all entities
// when filters is empty) and returns the updated entities. id, createdAt and
// updatedAt are never taken from the patch; updatedAt is restamped when
// withTimestamp is set. A model without a collection is NotFound; a filter
// matching nothing is not.
func (s *Store) Update(ctx context.Context, model string, patch map[string]any, withTimestamp bool, filters map[string]string) ([]Entity, error) {
	clean := copyEntity(patch)
	stripReserved(clean)
	conds := query.ParseAll(filters)

	var updated []Entity
	err := s.mutate(ctx, func(next Document) error {
		coll, ok := next[model]
		if !ok {
			return notFound(model, "", "Could not find any %s", convention.Capitalize(model))
		}

		replaced := make([]Entity, len(coll))
		copy(replaced, coll)
		for i, e := range coll {
			if !query.MatchAll(e, conds) {
				continue
			}
			replaced[i] = s.apply(e, clean, withTimestamp)
			updated = append(updated, replaced[i])
		}
		if len(updated) == 0 {
			return errUnchanged
		}
		next[model] = replaced
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, err
	}

	if len(updated) > 0 {
		s.logger.Debug().Str("model", model).Int("count", len(updated)).Msg("entities updated")
		s.publish(ctx, events.Event{Model: model, Action: events.ActionUpdated, Count: len(updated)})
	}
	return copyCollection(updated), nil
}

// UpdateByID deep-merges patch into one entity, as Update does.
func (s *Store) UpdateByID(ctx context.Context, model, id string, patch map[string]any, withTimestamp bool) (Entity, error) {
	clean := copyEntity(patch)
	stripReserved(clean)

	var updated Entity
	err := s.mutate(ctx, func(next Document) error {
		coll := next[model]
		i := indexOf(coll, id)
		if i < 0 {
			title := convention.Capitalize(model)
			return notFound(model, id, "Could not update %s. %s with id = %s not found", title, title, id)
		}

		replaced := make([]Entity, len(coll))
		copy(replaced, coll)
		replaced[i] = s.apply(coll[i], clean, withTimestamp)
		updated = replaced[i]
		next[model] = replaced
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("model", model).Str("id", id).Msg("entity updated")
	s.publish(ctx, events.Event{Model: model, Action: events.ActionUpdated, ID: id, Count: 1, Data: copyEntity(updated)})
	return copyEntity(updated), nil
}

// Delete removes the entities matching filters. With no filters the whole
// collection is dropped.
func (s *Store) Delete(ctx context.Context, model string, filters map[string]string) (Result, error) {
	title := convention.Capitalize(model)
	conds := query.ParseAll(filters)

	var count int
	err := s.mutate(ctx, func(next Document) error {
		coll, ok := next[model]
		if !ok {
			return notFound(model, "", "No entities found for %s", title)
		}

		if len(conds) == 0 {
			count = len(coll)
			delete(next, model)
			return nil
		}

		kept := make([]Entity, 0, len(coll))
		for _, e := range coll {
			if query.MatchAll(e, conds) {
				count++
				continue
			}
			kept = append(kept, e)
		}
		next[model] = kept
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Debug().Str("model", model).Int("count", count).Msg("entities deleted")
	s.publish(ctx, events.Event{Model: model, Action: events.ActionDeleted, Count: count})
	return Result{Message: fmt.Sprintf("Deleted %d entities from %s", count, title), Count: count}, nil
}

// DeleteByID removes one entity.
func (s *Store) DeleteByID(ctx context.Context, model, id string) (Result, error) {
	title := convention.Capitalize(model)

	err := s.mutate(ctx, func(next Document) error {
		coll := next[model]
		if len(coll) == 0 {
			return notFound(model, id, "No entities found for %s", title)
		}
		i := indexOf(coll, id)
		if i < 0 {
			return notFound(model, id, "%s with id = %s does not exist", title, id)
		}

		kept := make([]Entity, 0, len(coll)-1)
		kept = append(kept, coll[:i]...)
		next[model] = append(kept, coll[i+1:]...)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Debug().Str("model", model).Str("id", id).Msg("entity deleted")
	s.publish(ctx, events.Event{Model: model, Action: events.ActionDeleted, ID: id, Count: 1})
	return Result{Message: fmt.Sprintf("Successfully deleted %s with id = %s", title, id), Count: 1}, nil
}

// errUnchanged aborts a mutation that has nothing to save.
var errUnchanged = errors.New("unchanged")

// mutate runs fn on a copy of the document under the store lock, saves the
// copy and makes it current. Nothing changes if fn or the save fails.
func (s *Store) mutate(ctx context.Context, fn func(next Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.persister.Save(ctx, next); err != nil {
		s.logger.Error().Err(err).Str("db", s.persister.Location()).Msg("persist failed")
		return fmt.Errorf("persist store: %w", err)
	}
	s.doc = next
	return nil
}

// apply returns a merged copy of e.
func (s *Store) apply(e Entity, patch map[string]any, withTimestamp bool) Entity {
	out := copyEntity(e)
	merge(out, copyEntity(patch))
	if withTimestamp {
		out[schema.FieldUpdatedAt] = s.timestamp()
	}
	return out
}

func (s *Store) timestamp() string {
	return s.clock.Now().Format(TimestampLayout)
}

func (s *Store) publish(ctx context.Context, e events.Event) {
	if s.bus == nil {
		return
	}
	e.Name = events.Name(e.Model, e.Action)
	s.bus.Publish(ctx, e)
}

func indexOf(coll []Entity, id string) int {
	for i, e := range coll {
		if v, ok := e[schema.FieldID].(string); ok && v == id {
			return i
		}
	}
	return -1
}
