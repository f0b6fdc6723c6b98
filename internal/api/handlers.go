// Package api serves the notes REST endpoints.
package api

import (
	"context"
	_ "embed"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/notes"
)

const readyTimeout = 2 * time.Second

//go:embed openapi.json
var openAPIDocument []byte

// Handler wraps the notes service and provides HTTP handlers
type Handler struct {
	notesService *notes.Service
	version      string
	baseURL      string
}

// NewHandler creates a new API handler. baseURL is used for Location
// headers when the request host is unknown.
func NewHandler(notesService *notes.Service, version, baseURL string) *Handler {
	return &Handler{
		notesService: notesService,
		version:      version,
		baseURL:      baseURL,
	}
}

// RegisterRoutes registers the notes and health routes under prefix
// ("" or "/api/v1").
func (h *Handler) RegisterRoutes(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/notes", h.ListNotes)
	mux.HandleFunc("GET "+prefix+"/notes/{id}", h.GetNote)
	mux.HandleFunc("POST "+prefix+"/notes", h.CreateNote)
	mux.HandleFunc("PATCH "+prefix+"/notes/{id}", h.UpdateNote)
	mux.HandleFunc("DELETE "+prefix+"/notes/{id}", h.DeleteNote)
	mux.HandleFunc("GET "+prefix+"/health", h.Health)
	mux.HandleFunc("GET "+prefix+"/ready", h.Ready)
}

// RegisterDocs registers the API root and the OpenAPI document.
func (h *Handler) RegisterDocs(mux *http.ServeMux) {
	mux.HandleFunc("GET /api", h.Root)
	mux.HandleFunc("GET /api/docs", h.Docs)
}

// ListNotes handles GET /notes. Non-numeric page and limit and an unknown
// sort fall back to their defaults.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	limit, _ := strconv.Atoi(strings.TrimSpace(q.Get("limit")))

	params := notes.NewListParams(page, limit, q.Get("sort"))
	result, err := h.notesService.List(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetNote handles GET /notes/{id}
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.notesService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /notes and answers 201 with a Location header.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeNoteFields(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	in := notes.CreateInput{Title: fields.Title, Body: fields.Body}
	if len(fields.mistyped) > 0 {
		_, verr := notes.NewDraft(in)
		writeServiceError(w, r, fields.withTypeErrors(verr))
		return
	}

	note, err := h.notesService.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", h.noteURL(r, note.ID))
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PATCH /notes/{id}. Only supplied fields change.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := notes.ParseID(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	fields, err := decodeNoteFields(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	in := notes.PatchInput{Title: fields.Title, Body: fields.Body}
	if len(fields.mistyped) > 0 {
		_, verr := notes.NewPatch(in)
		writeServiceError(w, r, fields.withTypeErrors(verr))
		return
	}

	note, err := h.notesService.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/{id}
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if _, err := h.notesService.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness. It never touches the store.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the store answers a ping.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := h.notesService.Ping(ctx); err != nil {
		writeServiceError(w, r, errs.Wrap(errs.Unavailable, "Store unavailable", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Root handles GET /api
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":          "notes-api",
		"version":       h.version,
		"documentation": "/api/docs",
	})
}

// Docs serves the OpenAPI document.
func (h *Handler) Docs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDocument)
}
