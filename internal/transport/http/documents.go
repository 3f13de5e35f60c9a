package httptransport

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"collection-service/internal/entity"
)

const maxSignatureBytes = 5 << 20

type documentDTO struct {
	Kind entity.DocumentKind `json:"kind"`
}

type signatureResp struct {
	Reference string `json:"reference"`
}

// WeightRollup godoc
// @Summary Weight per category for the waste transfer note
// @Tags compliance
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {array} entity.CategoryWeight
// @Failure 404 {object} apiError
// @Router /jobs/{id}/compliance/weights [get]
func (h *Handler) WeightRollup(w http.ResponseWriter, r *http.Request) {
	job, ok := h.visibleJob(w, r)
	if !ok {
		return
	}
	rows, err := h.compliance.WeightByCategory(r.Context(), job.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ErasureRollup godoc
// @Summary Erasure-required items per category
// @Tags compliance
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {array} entity.ErasureGroup
// @Failure 404 {object} apiError
// @Router /jobs/{id}/compliance/erasure [get]
func (h *Handler) ErasureRollup(w http.ResponseWriter, r *http.Request) {
	job, ok := h.visibleJob(w, r)
	if !ok {
		return
	}
	groups, err := h.compliance.ErasureRollup(r.Context(), job.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// RequestDocument godoc
// @Summary Queue a compliance document
// @Description The workbook is rendered in the background.
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param request body documentDTO true "waste_transfer_note | destruction_certificate"
// @Success 202 {object} entity.DocumentRequest
// @Failure 409 {object} apiError
// @Failure 503 {object} apiError
// @Router /jobs/{id}/documents [post]
func (h *Handler) RequestDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	var dto documentDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	req, err := h.docs.RequestDocument(r.Context(), actorFrom(r.Context()), id, dto.Kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

// PutSignature godoc
// @Summary Upload a captured signature
// @Description PNG or JPEG body. Stored as a PNG of at most 600x240; the reference goes into the proof.
// @Tags signatures
// @Accept png
// @Accept jpeg
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param role path string true "customer | driver | staff"
// @Success 201 {object} signatureResp
// @Failure 400 {object} apiError
// @Failure 413 {object} apiError
// @Router /jobs/{id}/signatures/{role} [put]
func (h *Handler) PutSignature(w http.ResponseWriter, r *http.Request) {
	if h.signatures == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Message: "signature store not configured", Code: "unavailable"})
		return
	}
	job, ok := h.visibleJob(w, r)
	if !ok {
		return
	}
	if !job.Editable() {
		h.fail(w, r, entity.NewFieldError(entity.ErrJobNotEditable, "status", "job is "+string(job.Status)))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignatureBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeErr(w, http.StatusRequestEntityTooLarge, "signature image too large")
			return
		}
		writeErr(w, http.StatusBadRequest, "cannot read body")
		return
	}

	role := entity.SignatureRole(chi.URLParam(r, "role"))
	ref, err := h.signatures.Put(r.Context(), job.Code, role, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signatureResp{Reference: ref})
}
