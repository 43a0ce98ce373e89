// Package api exposes the pipeline over HTTP: read access to ideas, stats
// and projects, capture of new ideas, and manual reset.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/store"
)

// Store is the part of the item store the API serves.
type Store interface {
	pipeline.ResetStore
	Stats() (store.Stats, error)
	ListItems(f store.ListFilter) ([]store.Item, error)
	GetItem(id int64) (*store.Item, error)
	GetEvents(itemID int64) ([]store.Event, error)
	CreateItem(n store.NewItem) (*store.Item, error)
	ListProjects() ([]store.Project, error)
}

// Config for the HTTP API handler.
type Config struct {
	Store    Store
	BasePath string // default /v1
	Logger   *slog.Logger
}

// New returns an HTTP handler exposing the API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("api: store is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))

	hcfg := huma.DefaultConfig("ideaflow API", "1.0.0")
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerStats(group, cfg.Store)
	registerIdeas(group, cfg.Store)
	registerProjects(group, cfg.Store)

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request", "method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "duration", time.Since(start))
		})
	}
}

func handleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, pipeline.ErrIllegalTransition), errors.Is(err, store.ErrStaleState):
		return huma.Error409Conflict(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStats(api huma.API, s Store) {
	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Item counts per pipeline bucket",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body store.Stats `json:"body"`
	}, error) {
		stats, err := s.Stats()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body store.Stats `json:"body"`
		}{Body: stats}, nil
	})
}

// CaptureRequest is the body of POST /ideas.
type CaptureRequest struct {
	Text      string   `json:"text" minLength:"1" doc:"Idea text"`
	Priority  string   `json:"priority,omitempty" enum:"high,medium,low,alta,media,baja"`
	Type      string   `json:"type,omitempty" doc:"Classification type, e.g. software or consulting"`
	Category  string   `json:"category,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Agent     string   `json:"agent,omitempty" doc:"Suggested specialist"`
	Skills    []string `json:"skills,omitempty" doc:"Suggested skill paths"`
	Organized bool     `json:"organized,omitempty" doc:"Mark as organized so the router picks it up"`
}

// ItemDetail is an item with its audit trail.
type ItemDetail struct {
	store.Item
	Events []store.Event `json:"events"`
}

func registerIdeas(api huma.API, s Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-ideas",
		Method:      http.MethodGet,
		Path:        "/ideas",
		Summary:     "List ideas",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" doc:"Pipeline state; unset selects items no pipeline owns"`
		Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []store.Item `json:"body"`
	}, error) {
		f := store.ListFilter{Limit: input.Limit}
		if input.Status != "" {
			st, ok := store.ParseStatus(input.Status)
			if !ok {
				return nil, huma.Error400BadRequest("unknown status " + input.Status)
			}
			f.Status = &st
		}
		items, err := s.ListItems(f)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []store.Item{}
		}
		return &struct {
			Body []store.Item `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-idea",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}",
		Summary:     "Get an idea with its events",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body ItemDetail `json:"body"`
	}, error) {
		it, err := s.GetItem(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		events, err := s.GetEvents(it.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if events == nil {
			events = []store.Event{}
		}
		return &struct {
			Body ItemDetail `json:"body"`
		}{Body: ItemDetail{Item: *it, Events: events}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "capture-idea",
		Method:        http.MethodPost,
		Path:          "/ideas",
		Summary:       "Capture an idea",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CaptureRequest `json:"body"`
	}) (*struct {
		Body store.Item `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Text) == "" {
			return nil, huma.Error400BadRequest("text is required")
		}
		n := store.NewItem{
			Text:            input.Body.Text,
			Priority:        input.Body.Priority,
			AIType:          input.Body.Type,
			AICategory:      input.Body.Category,
			AISummary:       input.Body.Summary,
			SuggestedAgent:  input.Body.Agent,
			SuggestedSkills: input.Body.Skills,
		}
		if input.Body.Organized {
			n.Stage = store.StageOrganized
		}
		it, err := s.CreateItem(n)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body store.Item `json:"body"`
		}{Body: *it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-idea",
		Method:      http.MethodPost,
		Path:        "/ideas/{id}/reset",
		Summary:     "Hand a blocked or failed idea back to routing",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body store.Item `json:"body"`
	}, error) {
		it, err := s.GetItem(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := pipeline.Reset(s, it); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body store.Item `json:"body"`
		}{Body: *it}, nil
	})
}

func registerProjects(api huma.API, s Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List registered projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []store.Project `json:"body"`
	}, error) {
		projects, err := s.ListProjects()
		if err != nil {
			return nil, handleError(err)
		}
		if projects == nil {
			projects = []store.Project{}
		}
		return &struct {
			Body []store.Project `json:"body"`
		}{Body: projects}, nil
	})
}
