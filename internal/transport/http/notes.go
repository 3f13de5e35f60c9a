package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type noteDTO struct {
	Content string `json:"content"`
}

// ListNotes godoc
// @Summary Audit log of a job, oldest first
// @Tags notes
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {array} entity.AuditEntry
// @Failure 404 {object} apiError
// @Router /jobs/{id}/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	job, ok := h.visibleJob(w, r)
	if !ok {
		return
	}
	entries, err := h.audit.List(r.Context(), job.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// AddNote godoc
// @Summary Add a note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param request body noteDTO true "note"
// @Success 201 {object} entity.AuditEntry
// @Failure 400 {object} apiError
// @Router /jobs/{id}/notes [post]
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	job, ok := h.visibleJob(w, r)
	if !ok {
		return
	}
	var dto noteDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	e, err := h.audit.Append(r.Context(), job.ID, actorFrom(r.Context()), dto.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// EditNote godoc
// @Summary Edit your own note
// @Tags notes
// @Accept json
// @Produce json
// @Param noteId path string true "note id (uuid)"
// @Param request body noteDTO true "new content"
// @Success 200 {object} entity.AuditEntry
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /notes/{noteId} [patch]
func (h *Handler) EditNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "noteId"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid note id")
		return
	}
	var dto noteDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	e, err := h.audit.Edit(r.Context(), id, actorFrom(r.Context()), dto.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteNote godoc
// @Summary Remove your own note
// @Tags notes
// @Param noteId path string true "note id (uuid)"
// @Success 204
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /notes/{noteId} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "noteId"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid note id")
		return
	}
	if err := h.audit.Remove(r.Context(), id, actorFrom(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
