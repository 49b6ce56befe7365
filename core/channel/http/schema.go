package http

import (
	"net/http"
	"strings"

	"github.com/artpar/immitate/core/convention"
	"github.com/artpar/immitate/core/schema"
	"github.com/go-chi/chi/v5"
)

// ModelSummary describes one registered model.
type ModelSummary struct {
	Name       string        `json:"name"`
	Resource   string        `json:"resource"`
	Path       string        `json:"path"`
	Timestamps bool          `json:"timestamps"`
	Strict     bool          `json:"strict"`
	NullFill   bool          `json:"nullFill"`
	Routes     []schema.Verb `json:"routes"`
}

// ModelSchema is a summary plus the declared schema.
type ModelSchema struct {
	ModelSummary
	Schema    schema.Schema `json:"schema"`
	Endpoints []Endpoint    `json:"endpoints"`
}

// Endpoint is one served method and path.
type Endpoint struct {
	Verb   schema.Verb `json:"verb"`
	Method string      `json:"method"`
	Path   string      `json:"path"`
}

// SchemaHandler handles schema introspection requests.
type SchemaHandler struct {
	models func() []convention.Derived
}

// NewSchemaHandler creates a schema handler over the models returned by models.
func NewSchemaHandler(models func() []convention.Derived) *SchemaHandler {
	return &SchemaHandler{models: models}
}

// Routes returns a router with all schema routes.
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listModels)
	r.Get("/{model}", h.getModel)
	return r
}

// listModels handles GET /_schema
func (h *SchemaHandler) listModels(w http.ResponseWriter, r *http.Request) {
	models := h.models()
	summaries := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		summaries = append(summaries, summarize(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": summaries,
		"count":  len(summaries),
	})
}

// getModel handles GET /_schema/{model}, by model name or resource.
func (h *SchemaHandler) getModel(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "model")
	for _, m := range h.models() {
		if strings.EqualFold(m.Source.Name, key) || m.Resource == key {
			writeJSON(w, http.StatusOK, ModelSchema{
				ModelSummary: summarize(m),
				Schema:       m.Source.Schema,
				Endpoints:    endpoints(m),
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, ErrorBody{
		Status:  http.StatusNotFound,
		Message: "Could not find model " + key,
	})
}

func summarize(m convention.Derived) ModelSummary {
	routes := m.Verbs
	if routes == nil {
		routes = []schema.Verb{}
	}
	return ModelSummary{
		Name:       m.Title,
		Resource:   m.Resource,
		Path:       m.BasePath,
		Timestamps: m.Source.Timestamps,
		Strict:     m.Source.Strict,
		NullFill:   m.Source.FillsNulls(),
		Routes:     routes,
	}
}

func endpoints(m convention.Derived) []Endpoint {
	item := m.BasePath + "/{id}"
	out := make([]Endpoint, 0, len(m.Verbs)+2)
	for _, v := range m.Verbs {
		switch v {
		case schema.VerbGet:
			out = append(out, Endpoint{v, http.MethodGet, m.BasePath})
		case schema.VerbGetByID:
			out = append(out, Endpoint{v, http.MethodGet, item})
		case schema.VerbCreate:
			out = append(out, Endpoint{v, http.MethodPost, m.BasePath})
		case schema.VerbUpdate:
			out = append(out, Endpoint{v, http.MethodPut, m.BasePath}, Endpoint{v, http.MethodPatch, m.BasePath})
		case schema.VerbUpdateByID:
			out = append(out, Endpoint{v, http.MethodPut, item}, Endpoint{v, http.MethodPatch, item})
		case schema.VerbDelete:
			out = append(out, Endpoint{v, http.MethodDelete, m.BasePath})
		case schema.VerbDeleteByID:
			out = append(out, Endpoint{v, http.MethodDelete, item})
		}
	}
	return out
}
