package httptransport

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collection-service/internal/entity"
	"collection-service/internal/service"
	"collection-service/internal/storage"
)

// HandlerDeps groups what the handlers call into. Signatures may be nil,
// in which case signature uploads answer 503.
type HandlerDeps struct {
	Jobs       *service.JobService
	Ledger     *service.ItemLedger
	Audit      *service.AuditLog
	Compliance *service.Compliance
	Documents  *service.Documents
	Signatures *storage.SignatureStore
	Log        logrus.FieldLogger
}

type Handler struct {
	jobs       *service.JobService
	ledger     *service.ItemLedger
	audit      *service.AuditLog
	compliance *service.Compliance
	docs       *service.Documents
	signatures *storage.SignatureStore
	log        logrus.FieldLogger
}

func NewHandler(d HandlerDeps) *Handler {
	h := &Handler{
		jobs:       d.Jobs,
		ledger:     d.Ledger,
		audit:      d.Audit,
		compliance: d.Compliance,
		docs:       d.Documents,
		signatures: d.Signatures,
		log:        d.Log,
	}
	if h.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		h.log = l
	}
	return h
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceErr(w, r, h.log, err)
}

type jobResp struct {
	*entity.Job
	Group        entity.StatusGroup `json:"group"`
	Editable     bool               `json:"editable"`
	NextStatuses []entity.JobStatus `json:"next_statuses"`
}

func toJobResp(actor entity.Actor, j *entity.Job) jobResp {
	next := service.NextStatuses(actor, j.Status)
	if next == nil {
		next = []entity.JobStatus{}
	}
	return jobResp{Job: j, Group: j.Status.Group(), Editable: j.Editable(), NextStatuses: next}
}

// jobID parses {id}; it writes the 400 itself.
func (h *Handler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// visibleJob loads {id} for the caller. Jobs the caller may not see are 404.
func (h *Handler) visibleJob(w http.ResponseWriter, r *http.Request) (*entity.Job, bool) {
	id, ok := h.jobID(w, r)
	if !ok {
		return nil, false
	}
	job, err := h.jobs.GetJob(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return job, true
}

// CreateJob godoc
// @Summary Create a job
// @Description kind "quote" starts in Quote Draft, "collection" in Request Draft.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body service.CreateJobRequest true "job payload"
// @Success 201 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req service.CreateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	actor := actorFrom(r.Context())
	job, err := h.jobs.CreateJob(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobResp(actor, job))
}

// ListJobs godoc
// @Summary List jobs
// @Description Customers only ever see their own jobs.
// @Tags jobs
// @Produce json
// @Param status query string false "exact status"
// @Param group query string false "quotes|collections|processing|completed"
// @Param customer_id query string false "customer uuid (staff only)"
// @Success 200 {array} jobResp
// @Failure 400 {object} apiError
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := entity.JobFilter{
		Status: entity.JobStatus(q.Get("status")),
		Group:  entity.StatusGroup(q.Get("group")),
	}
	if v := q.Get("customer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid customer_id")
			return
		}
		f.CustomerID = id
	}

	actor := actorFrom(r.Context())
	jobs, err := h.jobs.ListJobs(r.Context(), actor, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]jobResp, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResp(actor, &jobs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.visibleJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toJobResp(actorFrom(r.Context()), job))
}

// UpdateJob godoc
// @Summary Edit job details
// @Description Staff only. Status, signatures and stage timestamps cannot be patched.
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param request body service.JobPatch true "fields to change"
// @Success 200 {object} jobResp
// @Failure 403 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id} [patch]
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	var patch service.JobPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	actor := actorFrom(r.Context())
	job, err := h.jobs.UpdateJob(r.Context(), actor, id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResp(actor, job))
}

// DeleteJob godoc
// @Summary Soft-delete a job
// @Tags jobs
// @Param id path string true "job id (uuid)"
// @Success 204
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [delete]
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	if err := h.jobs.DeleteJob(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transition godoc
// @Summary Move a job to another status
// @Description Proofs are required for Collected and Received at Facility.
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param request body service.TransitionRequest true "target status and its data"
// @Success 200 {object} jobResp
// @Failure 403 {object} apiError
// @Failure 409 {object} apiError
// @Failure 422 {object} apiError
// @Router /jobs/{id}/transitions [post]
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	var req service.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	actor := actorFrom(r.Context())
	job, err := h.jobs.Transition(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResp(actor, job))
}
