package note

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/go-notes-api/internal/auth"
	"github.com/redmonkez12/go-notes-api/internal/httputil"
	"github.com/redmonkez12/go-notes-api/internal/logging"
)

// Handler contains HTTP handlers for the notes endpoints. Every route expects
// auth.Middleware.RequireAuth in front of it.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateNoteRequest represents the note creation body
type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateNoteRequest represents a partial note update; omitted fields are kept
type UpdateNoteRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Routes mounts the notes endpoints on a sub-router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{noteID}", h.Get)
	r.Put("/{noteID}", h.Update)
	r.Delete("/{noteID}", h.Delete)
	return r
}

// List returns the caller's notes
// @Summary      List notes
// @Description  Return the authenticated user's notes, most recently updated first.
// @Tags         notes
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Note
// @Failure      401 {object} httputil.ErrorResponse
// @Failure      500 {object} httputil.ErrorResponse
// @Router       /api/notes [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	notes, err := h.service.List(r.Context(), owner)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, notes, http.StatusOK)
}

// Create adds a note
// @Summary      Create note
// @Tags         notes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateNoteRequest true "Note"
// @Success      201 {object} Note
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Failure      500 {object} httputil.ErrorResponse
// @Router       /api/notes [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateNoteRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logging.GetLoggerFromContext(r.Context()).Warn("invalid note request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	n, err := h.service.Create(r.Context(), owner, CreateInput{Title: req.Title, Content: req.Content})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, n, http.StatusCreated)
}

// Get returns one note
// @Summary      Get note
// @Tags         notes
// @Produce      json
// @Security     BearerAuth
// @Param        noteID path string true "Note ID"
// @Success      200 {object} Note
// @Failure      401 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /api/notes/{noteID} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	n, err := h.service.Get(r.Context(), owner, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, n, http.StatusOK)
}

// Update modifies a note
// @Summary      Update note
// @Description  Partial update: omitted fields are left unchanged.
// @Tags         notes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        noteID path string true "Note ID"
// @Param        request body UpdateNoteRequest true "Fields to change"
// @Success      200 {object} Note
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /api/notes/{noteID} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	var req UpdateNoteRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logging.GetLoggerFromContext(r.Context()).Warn("invalid note request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	n, err := h.service.Update(r.Context(), owner, id, UpdateInput{Title: req.Title, Content: req.Content})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, n, http.StatusOK)
}

// Delete removes a note
// @Summary      Delete note
// @Tags         notes
// @Security     BearerAuth
// @Param        noteID path string true "Note ID"
// @Success      204
// @Failure      401 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /api/notes/{noteID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), owner, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	httputil.RespondNoContent(w)
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	owner, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, auth.ErrUnauthenticated.Error(), httputil.CodeUnauthenticated, http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return owner, true
}

// ownerAndID also parses the note id; an unparseable id cannot name an
// existing note and gets the same 404.
func (h *Handler) ownerAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := h.owner(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "noteID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, ErrNotFound.Error(), httputil.CodeNotFound, http.StatusNotFound)
		return uuid.Nil, uuid.Nil, false
	}

	return owner, id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		httputil.RespondErrorWithCode(w, ve.Message, httputil.CodeValidationFailed, http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		httputil.RespondErrorWithCode(w, ErrNotFound.Error(), httputil.CodeNotFound, http.StatusNotFound)
	default:
		logging.GetLoggerFromContext(r.Context()).Error("note operation failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}
