// Package http serves the generated REST API: one route per exposed model
// verb, plus the home banner, the OpenAPI document and schema introspection.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/artpar/immitate/core/convention"
	"github.com/artpar/immitate/core/openapi"
	"github.com/artpar/immitate/core/schema"
	"github.com/artpar/immitate/core/storage"
	"github.com/artpar/immitate/core/validation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// DefaultMaxBodyBytes caps request bodies when Options leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// Store is the subset of *storage.Store the channel serves.
type Store interface {
	FindAll(ctx context.Context, model string, filters map[string]string) []storage.Entity
	FindByID(ctx context.Context, model, id string) (storage.Entity, error)
	Create(ctx context.Context, model schema.Model, body map[string]any) (storage.Entity, error)
	Update(ctx context.Context, model string, patch map[string]any, withTimestamp bool, filters map[string]string) ([]storage.Entity, error)
	UpdateByID(ctx context.Context, model, id string, patch map[string]any, withTimestamp bool) (storage.Entity, error)
	Delete(ctx context.Context, model string, filters map[string]string) (storage.Result, error)
	DeleteByID(ctx context.Context, model, id string) (storage.Result, error)
	Stats() map[string]int
}

var _ Store = (*storage.Store)(nil)

// Options configures a Channel.
type Options struct {
	Logger zerolog.Logger

	// OpenAPI serves /_openapi.json and the Swagger UI.
	OpenAPI bool

	// Info overrides the OpenAPI info block.
	Info *openapi.Info

	MaxBodyBytes int64
}

// Channel routes HTTP requests to the store.
type Channel struct {
	router chi.Router
	store  Store
	opts   Options
	logger zerolog.Logger
	mu     sync.RWMutex
	models []convention.Derived
	byPath map[string]string
}

// New creates a channel serving store.
func New(store Store, opts Options) *Channel {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	c := &Channel{
		router: chi.NewRouter(),
		store:  store,
		opts:   opts,
		logger: opts.Logger,
		byPath: make(map[string]string),
	}

	c.router.Get("/", c.handleHome)
	c.router.Get("/_stats", c.handleStats)

	schemaHandler := NewSchemaHandler(c.Models)
	c.router.Mount("/_schema", schemaHandler.Routes())

	if opts.OpenAPI {
		c.router.Get("/_openapi.json", c.handleOpenAPI)
		c.router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/_openapi.json")))
	}

	return c
}

// Handler returns the HTTP handler.
func (c *Channel) Handler() http.Handler {
	return c.router
}

// Models returns the registered models in registration order.
func (c *Channel) Models() []convention.Derived {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]convention.Derived, len(c.models))
	copy(out, c.models)
	return out
}

// Register adds the routes of every verb the model exposes.
func (c *Channel) Register(m convention.Derived) error {
	if !convention.ValidResource(m.Resource) {
		return fmt.Errorf("model %s: invalid resource name %q", m.Source.Name, m.Resource)
	}

	c.mu.Lock()
	if owner, ok := c.byPath[m.BasePath]; ok {
		c.mu.Unlock()
		return fmt.Errorf("model %s: path %s already served by %s", m.Source.Name, m.BasePath, owner)
	}
	c.byPath[m.BasePath] = m.Source.Name
	c.models = append(c.models, m)
	c.mu.Unlock()

	c.logger.Info().
		Str("model", m.Title).
		Str("resource", m.Resource).
		Msg("Discovered model")

	itemPath := m.BasePath + "/{id}"
	for _, verb := range m.Verbs {
		switch verb {
		case schema.VerbGet:
			c.route(m, verb, http.MethodGet, m.BasePath, c.handleList(m))
		case schema.VerbGetByID:
			c.route(m, verb, http.MethodGet, itemPath, c.handleGet(m))
		case schema.VerbCreate:
			c.route(m, verb, http.MethodPost, m.BasePath, c.handleCreate(m))
		case schema.VerbUpdate:
			c.route(m, verb, http.MethodPut, m.BasePath, c.handleUpdate(m))
			c.route(m, verb, http.MethodPatch, m.BasePath, c.handleUpdate(m))
		case schema.VerbUpdateByID:
			c.route(m, verb, http.MethodPut, itemPath, c.handleUpdateByID(m))
			c.route(m, verb, http.MethodPatch, itemPath, c.handleUpdateByID(m))
		case schema.VerbDelete:
			c.route(m, verb, http.MethodDelete, m.BasePath, c.handleDelete(m))
		case schema.VerbDeleteByID:
			c.route(m, verb, http.MethodDelete, itemPath, c.handleDeleteByID(m))
		}
	}
	return nil
}

func (c *Channel) route(m convention.Derived, verb schema.Verb, method, pattern string, h http.HandlerFunc) {
	c.router.Method(method, pattern, h)
	c.logger.Debug().
		Str("model", m.Title).
		Str("verb", string(verb)).
		Str("method", method).
		Str("path", pattern).
		Msg("Registered route")
}

func (c *Channel) handleList(m convention.Derived) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.store.FindAll(r.Context(), m.Source.Name, queryFilters(r)))
	}
}

func (c *Channel) handleGet(m convention.Derived) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entity, err := c.store.FindByID(r.Context(), m.Source.Name, chi.URLParam(r, "id"))
		if err != nil {
			c.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entity)
	}
}

func (c *Channel) handleCreate(m convention.Derived) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := c.decodeBody(w, r)
		if !ok {
			return
		}
		if res := validation.ValidateForCreate(m.Source, body); !res.Success {
			writeValidation(w, res)
			return
		}

		entity, err := c.store.Create(r.Context(), m.Source, body)
		if err != nil {
			c.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, entity)
	}
}

func (c *Channel) handleUpdate(m convention.Derived) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := c.decodeBody(w, r)
		if !ok {
			return
		}
		if res := validation.ValidateForUpdate(m.Source, body); !res.Success {
			writeValidation(w, res)
			return
		}

		updated, err := c.store.Update(r.Context(), m.Source.Name, body, m.Source.Timestamps, queryFilters(r))
		if err != nil {
			c.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func (c *Channel) handleUpdateByID(m convention.Derived) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := c.decodeBody(w, r)
		if !ok {
			return
		}
		if res := validation.ValidateForUpdate(m.Source, body); !res.Success {
			writeValidation(w, res)
			return
		}

		entity, err := c.store.UpdateByID(r.Context(), m.Source.Name, chi.URLParam(r, "id"), body, m.Source.Timestamps)
		if err != nil {
			c.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entity)
	}
}

func (c *Channel) handleDelete(m convention.Derived) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := c.store.Delete(r.Context(), m.Source.Name, queryFilters(r))
		if err != nil {
			c.writeStoreError(w, r, err)
			return
		}
		writeDeleted(w, res)
	}
}

func (c *Channel) handleDeleteByID(m convention.Derived) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := c.store.DeleteByID(r.Context(), m.Source.Name, chi.URLParam(r, "id"))
		if err != nil {
			c.writeStoreError(w, r, err)
			return
		}
		writeDeleted(w, res)
	}
}

// Home is the banner served at the root path.
type Home struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Docs        string `json:"docs,omitempty"`
}

func (c *Channel) handleHome(w http.ResponseWriter, r *http.Request) {
	home := Home{
		Name:        "Awesome Rest",
		Description: "A highly configurable, feature packed and awesome fake rest api server.",
	}
	if c.opts.OpenAPI {
		home.Docs = "/swagger/index.html"
	}
	writeJSON(w, http.StatusOK, home)
}

func (c *Channel) handleStats(w http.ResponseWriter, r *http.Request) {
	counts := c.store.Stats()
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":   counts,
		"entities": total,
	})
}

func (c *Channel) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	gen := openapi.NewGenerator(c.Models())
	if c.opts.Info != nil {
		gen.SetInfo(*c.opts.Info)
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	gen.AddServer(fmt.Sprintf("%s://%s", scheme, r.Host), "Current server")

	data, err := gen.Generate().ToJSON()
	if err != nil {
		c.writeStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// decodeBody reads a JSON object body. An empty body reads as {}.
func (c *Channel) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var raw any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, c.opts.MaxBodyBytes))
	err := dec.Decode(&raw)
	switch {
	case errors.Is(err, io.EOF):
		return map[string]any{}, true
	case err != nil:
		writeBadRequest(w, "Invalid JSON body", err.Error())
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		writeBadRequest(w, "Invalid JSON body", "unexpected data after the JSON value")
		return nil, false
	}

	body, ok := raw.(map[string]any)
	if !ok {
		writeBadRequest(w, "Invalid JSON body", "Expecting the body to be an object, found "+validation.TypeOf(raw))
		return nil, false
	}
	return body, true
}

// queryFilters keeps the first value of every query parameter.
func queryFilters(r *http.Request) map[string]string {
	q := r.URL.Query()
	filters := make(map[string]string, len(q))
	for key, values := range q {
		if len(values) > 0 {
			filters[key] = values[0]
		}
	}
	return filters
}

// ErrorBody is the JSON error response.
type ErrorBody struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// DeleteBody is the JSON response of a delete.
type DeleteBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

const messageServerFault = "Internal Server Error"

func (c *Channel) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Status: http.StatusNotFound, Message: err.Error()})
		return
	}
	c.logger.Error().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, ErrorBody{Status: http.StatusInternalServerError, Message: messageServerFault})
}

func writeValidation(w http.ResponseWriter, res validation.Result) {
	writeJSON(w, http.StatusBadRequest, ErrorBody{Status: http.StatusBadRequest, Message: res.Message, Errors: res.Errors})
}

func writeBadRequest(w http.ResponseWriter, message, detail string) {
	writeJSON(w, http.StatusBadRequest, ErrorBody{Status: http.StatusBadRequest, Message: message, Errors: []string{detail}})
}

func writeDeleted(w http.ResponseWriter, res storage.Result) {
	writeJSON(w, http.StatusOK, DeleteBody{Status: http.StatusOK, Message: res.Message, Count: res.Count})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
