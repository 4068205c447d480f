package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/derive"
	"github.com/starford/gebo/internal/models"
	"github.com/starford/gebo/internal/notestore"
	"github.com/starford/gebo/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *notestore.Service
	pipeline *derive.Pipeline
	events   *sse.Broker // may be nil
}

// NewHandler creates a new Handler. events may be nil when SSE is not wired.
func NewHandler(svc *notestore.Service, pipeline *derive.Pipeline, events *sse.Broker) *Handler {
	return &Handler{svc: svc, pipeline: pipeline, events: events}
}

// ListNotes handles GET /api/notes. Returns all notes, newest first.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.GetNotes(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrCorruptState) {
			slog.Error("list notes hit corrupt state", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("index references a missing artifact"))
			return
		}
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrCorruptState):
			slog.Error("get note hit corrupt state", slog.Int64("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("index references a missing artifact"))
		default:
			slog.Error("get note failed", slog.Int64("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes. The response is sent only after the
// incremental derivation pass against the existing corpus has completed;
// derivation failures never fail the request.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	note, err := h.svc.CreateNote(r.Context(), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrValidation):
			writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		case errors.Is(err, apperr.ErrInconsistentState):
			slog.Error("create note left inconsistent state", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("persistence inconsistency"))
		default:
			slog.Error("create note failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	if corpus, listErr := h.svc.GetNotes(r.Context()); listErr != nil {
		slog.Warn("derivation skipped: corpus unavailable", slog.String("error", listErr.Error()))
	} else {
		created := h.pipeline.DeriveForNote(r.Context(), note, corpus)
		slog.Info("incremental derivation finished",
			slog.Int64("note", note.ID),
			slog.Int("connections", created))
	}

	if h.events != nil {
		h.events.PublishNoteCreated(note.ID)
	}
	writeJSON(w, http.StatusCreated, note)
}

// ListConnections handles GET /api/connections. Returns all connections,
// newest first.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.svc.GetConnections(r.Context())
	if err != nil {
		slog.Error("list connections failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if conns == nil {
		conns = []models.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

// CreateConnection handles POST /api/connections. Manual connections are
// never AI-flagged and carry no relation.
func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.SourceID <= 0 || req.TargetID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("sourceId and targetId are required"))
		return
	}

	conn, err := h.svc.CreateConnection(r.Context(), req.SourceID, req.TargetID, req.Label, false, nil)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, errorBody("sourceId and targetId must reference existing notes"))
			return
		}
		slog.Error("create connection failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if h.events != nil {
		h.events.PublishConnectionCreated(conn)
	}
	writeJSON(w, http.StatusCreated, conn)
}

// Reprocess handles POST /api/reprocess-connections: classify every
// unordered note pair and report how many connections were created.
func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	created, err := h.pipeline.Reprocess(r.Context())
	if err != nil {
		slog.Error("reprocess failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to reprocess connections"))
		return
	}
	writeJSON(w, http.StatusOK, ReprocessResponse{CreatedCount: created})
}
