package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"collection-service/internal/entity"
)

type itemsDTO struct {
	Items []entity.JobItem `json:"items"`
}

type itemsResp struct {
	Items   []entity.JobItem `json:"items"`
	Unsaved bool             `json:"unsaved_changes"`
}

type newItemDTO struct {
	Stage   entity.Stage `json:"stage"`
	Pending []string     `json:"pending,omitempty"`
}

// customers work on their ledger only while the job is still a draft
func canEditItems(actor entity.Actor, job *entity.Job) bool {
	if actor.IsStaff() {
		return true
	}
	return job.Status == entity.StatusQuoteDraft || job.Status == entity.StatusRequestDraft
}

// editableJob is visibleJob plus the ledger write permission.
func (h *Handler) editableJob(w http.ResponseWriter, r *http.Request) (*entity.Job, bool) {
	job, ok := h.visibleJob(w, r)
	if !ok {
		return nil, false
	}
	if !canEditItems(actorFrom(r.Context()), job) {
		h.fail(w, r, entity.NewFieldError(entity.ErrForbidden, "role", "items are edited by staff once a job leaves draft"))
		return nil, false
	}
	return job, true
}

// ListItems godoc
// @Summary List a job's items
// @Tags items
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param include_deleted query bool false "include soft-deleted items"
// @Success 200 {object} itemsResp
// @Failure 404 {object} apiError
// @Router /jobs/{id}/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	job, ok := h.visibleJob(w, r)
	if !ok {
		return
	}
	includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("include_deleted"))

	items, err := h.ledger.ListItems(r.Context(), job.ID, includeDeleted)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	unsaved, err := h.ledger.HasUnsavedChanges(r.Context(), job.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResp{Items: items, Unsaved: unsaved})
}

// SaveItems godoc
// @Summary Save the job's items
// @Description All or nothing. Items left out of the body are kept; use DELETE /items/{itemId} to remove one.
// @Tags items
// @Accept json
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param request body itemsDTO true "items"
// @Success 200 {object} itemsResp
// @Failure 409 {object} apiError
// @Failure 422 {object} apiError
// @Router /jobs/{id}/items [put]
func (h *Handler) SaveItems(w http.ResponseWriter, r *http.Request) {
	job, ok := h.editableJob(w, r)
	if !ok {
		return
	}
	var dto itemsDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	items, err := h.ledger.SaveItems(r.Context(), job.ID, dto.Items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResp{Items: items})
}

// NewItem godoc
// @Summary Get a blank item with the next free number
// @Description Nothing is stored until the item is saved.
// @Tags items
// @Accept json
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param request body newItemDTO true "stage and numbers already handed out"
// @Success 200 {object} entity.JobItem
// @Failure 409 {object} apiError
// @Router /jobs/{id}/items/new [post]
func (h *Handler) NewItem(w http.ResponseWriter, r *http.Request) {
	job, ok := h.editableJob(w, r)
	if !ok {
		return
	}
	var dto newItemDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if dto.Stage == "" {
		dto.Stage = entity.StageCollection
	}

	item, err := h.ledger.AddItem(r.Context(), job.ID, dto.Stage, dto.Pending)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// StageDraft godoc
// @Summary Record the unsaved edit session
// @Description Transitions are refused while the returned change-set is non-empty.
// @Tags items
// @Accept json
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param request body itemsDTO true "items as currently shown"
// @Success 200 {object} entity.ChangeSet
// @Router /jobs/{id}/items/draft [put]
func (h *Handler) StageDraft(w http.ResponseWriter, r *http.Request) {
	job, ok := h.editableJob(w, r)
	if !ok {
		return
	}
	var dto itemsDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	cs, err := h.ledger.StageDraft(r.Context(), job.ID, dto.Items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// DiscardDraft godoc
// @Summary Drop the unsaved edit session
// @Tags items
// @Param id path string true "job id (uuid)"
// @Success 204
// @Router /jobs/{id}/items/draft [delete]
func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	job, ok := h.visibleJob(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DiscardDraft(r.Context(), job.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// itemForWrite resolves {itemId} and checks the caller may edit its job.
func (h *Handler) itemForWrite(w http.ResponseWriter, r *http.Request) (*entity.JobItem, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid item id")
		return nil, false
	}
	item, err := h.ledger.Item(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}

	actor := actorFrom(r.Context())
	job, err := h.jobs.GetJob(r.Context(), actor, item.JobID)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if !canEditItems(actor, job) {
		h.fail(w, r, entity.NewFieldError(entity.ErrForbidden, "role", "items are edited by staff once a job leaves draft"))
		return nil, false
	}
	return item, true
}

// ExpandItem godoc
// @Summary Split a batch into single items
// @Tags items
// @Produce json
// @Param itemId path int true "item id"
// @Success 200 {object} itemsResp
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /items/{itemId}/expand [post]
func (h *Handler) ExpandItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.itemForWrite(w, r)
	if !ok {
		return
	}
	items, err := h.ledger.ExpandItem(r.Context(), item.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResp{Items: items})
}

// DeleteItem godoc
// @Summary Soft-delete an item
// @Description The item number stays reserved.
// @Tags items
// @Param itemId path int true "item id"
// @Success 204
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /items/{itemId} [delete]
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.itemForWrite(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DeleteItem(r.Context(), item.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
