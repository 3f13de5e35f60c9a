package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"collection-service/internal/entity"
)

var ErrQueueUnavailable = errors.New("document queue not configured")

// DocumentEnqueuer is the producer half of DocumentQueue.
type DocumentEnqueuer interface {
	Enqueue(ctx context.Context, req entity.DocumentRequest, priority Priority) error
}

// Documents accepts compliance document requests and builds the read-only
// snapshot the renderer works from.
type Documents struct {
	jobs       JobRepository
	items      ItemRepository
	compliance *Compliance
	queue      DocumentEnqueuer
	now        func() time.Time
}

// NewDocuments wires the document service. queue may be nil, in which case
// requests fail with ErrQueueUnavailable.
func NewDocuments(jobs JobRepository, items ItemRepository, compliance *Compliance, queue DocumentEnqueuer) *Documents {
	return &Documents{
		jobs:       jobs,
		items:      items,
		compliance: compliance,
		queue:      queue,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (d *Documents) SetClock(now func() time.Time) { d.now = now }

// DocumentAvailable reports whether kind can be produced for a job in status.
func DocumentAvailable(kind entity.DocumentKind, status entity.JobStatus) bool {
	switch kind {
	case entity.DocWasteTransferNote:
		return status.Group() == entity.GroupProcessing || status == entity.StatusComplete
	case entity.DocDestructionCertificate:
		return status == entity.StatusProcessing || status == entity.StatusComplete
	default:
		return false
	}
}

func documentPriority(kind entity.DocumentKind) Priority {
	if kind == entity.DocWasteTransferNote {
		return PriorityHigh
	}
	return PriorityNormal
}

// RequestDocument queues kind for rendering.
func (d *Documents) RequestDocument(ctx context.Context, actor entity.Actor, jobID uuid.UUID, kind entity.DocumentKind) (*entity.DocumentRequest, error) {
	if !kind.Valid() {
		return nil, entity.NewFieldError(entity.ErrValidation, "kind", fmt.Sprintf("unknown document %q", kind))
	}
	job, err := d.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.CanSee(job) {
		return nil, entity.NewFieldError(entity.ErrNotFound, "job_id", jobID.String())
	}
	if !DocumentAvailable(kind, job.Status) {
		return nil, entity.NewFieldError(entity.ErrInvalidTransition, "kind", fmt.Sprintf("%s is not available while %s", kind, job.Status))
	}
	return d.enqueue(ctx, job.ID, kind, actor.ID)
}

func (d *Documents) enqueue(ctx context.Context, jobID uuid.UUID, kind entity.DocumentKind, by string) (*entity.DocumentRequest, error) {
	if d.queue == nil {
		return nil, ErrQueueUnavailable
	}
	req := entity.DocumentRequest{
		ID:          uuid.New(),
		JobID:       jobID,
		Kind:        kind,
		RequestedBy: by,
		RequestedAt: d.now(),
	}
	if err := d.queue.Enqueue(ctx, req, documentPriority(kind)); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return &req, nil
}

// Snapshot gathers everything the renderer needs from persisted state.
func (d *Documents) Snapshot(ctx context.Context, jobID uuid.UUID, kind entity.DocumentKind) (*entity.DocumentSnapshot, error) {
	job, err := d.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !DocumentAvailable(kind, job.Status) {
		return nil, entity.NewFieldError(entity.ErrInvalidTransition, "kind", fmt.Sprintf("%s is not available while %s", kind, job.Status))
	}
	items, err := d.items.ListByJob(ctx, jobID, false)
	if err != nil {
		return nil, err
	}
	sortItems(items)

	snap := &entity.DocumentSnapshot{Kind: kind, Job: *job, Items: items}
	switch kind {
	case entity.DocWasteTransferNote:
		snap.Weights, err = d.compliance.WeightByCategory(ctx, jobID)
	case entity.DocDestructionCertificate:
		snap.Erasure, err = d.compliance.ErasureRollup(ctx, jobID)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}
