// Package api serves the notes REST endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kuitang/notewise/internal/auth"
	"github.com/kuitang/notewise/internal/errs"
	"github.com/kuitang/notewise/internal/notes"
	"github.com/kuitang/notewise/internal/obs"
)

// maxBodyBytes bounds note request bodies.
const maxBodyBytes = 1 << 20

// Handler wraps the notes service and provides HTTP handlers
type Handler struct {
	notesService *notes.Service
}

// NewHandler creates a new API handler with the given notes service
func NewHandler(notesService *notes.Service) *Handler {
	return &Handler{notesService: notesService}
}

// RegisterRoutes registers all notes API routes on the given mux. Every route
// requires an authenticated user and is wrapped by protect.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(fn))
	}
	handle("GET /api/notes", h.ListNotes)
	handle("GET /api/notes/search", h.SearchNotes)
	handle("GET /api/notes/{id}", h.GetNote)
	handle("POST /api/notes", h.CreateNote)
	handle("PUT /api/notes/{id}", h.UpdateNote)
	handle("DELETE /api/notes/{id}", h.DeleteNote)
}

// ListNotes handles GET /api/notes - returns all of the caller's notes
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.notesService.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SearchNotes handles GET /api/notes/search?query= - substring search
func (h *Handler) SearchNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	results, err := h.notesService.Search(r.Context(), userID, r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// GetNote handles GET /api/notes/{id} - returns a single note by ID
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	note, err := h.notesService.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes - creates a new note
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var params notes.CreateNoteParams
	if !decodeBody(w, r, &params) {
		return
	}

	note, err := h.notesService.Create(r.Context(), userID, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id} - applies a partial update
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var params notes.UpdateNoteParams
	if !decodeBody(w, r, &params) {
		return
	}

	note, err := h.notesService.Update(r.Context(), userID, r.PathValue("id"), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id} - deletes a note
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.notesService.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Note removed"})
}

// MessageResponse is the body of responses that carry no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, errs.New(errs.Unauthenticated, "authentication required"))
		return "", false
	}
	return userID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, errs.Wrap(errs.InvalidArgument, "request body too large", err))
			return false
		}
		writeError(w, r, errs.Wrap(errs.InvalidArgument, "invalid JSON body", err))
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps a coded error to its status and JSON body. Internal causes
// are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("api_request_failed", "code", string(code), "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: errs.MessageOf(err), Code: string(code)})
}
