package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gebo/internal/derive"
	"github.com/starford/gebo/internal/notestore"
	"github.com/starford/gebo/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, receives note/connection broadcasts and is mounted
// as the SSE endpoint at GET /events inside the auth group.
func NewRouter(svc *notestore.Service, pipeline *derive.Pipeline, events *sse.Broker, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc, pipeline, events)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)

	// Connections.
	r.Get("/connections", h.ListConnections)
	r.Post("/connections", h.CreateConnection)
	r.Post("/reprocess-connections", h.Reprocess)

	// SSE endpoint (protected by the same auth middleware).
	if events != nil {
		r.Method(http.MethodGet, "/events", events)
	}

	return r
}
