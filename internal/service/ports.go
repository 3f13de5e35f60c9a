package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"collection-service/internal/entity"
)

// TxManager runs fn in one database transaction. Repositories called with
// the ctx passed to fn take part in it.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repository ports (implementations: postgresql, memory).

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	Update(ctx context.Context, job *entity.Job) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, f entity.JobFilter) ([]entity.Job, error)

	// LockCodeSequence serialises job code allocation until the tx ends.
	LockCodeSequence(ctx context.Context) error
	// LastCodeWithPrefix looks at soft-deleted jobs too. "" when none.
	LastCodeWithPrefix(ctx context.Context, prefix string) (string, error)
}

type ItemRepository interface {
	ListByJob(ctx context.Context, jobID uuid.UUID, includeDeleted bool) ([]entity.JobItem, error)
	// GetByID returns soft-deleted items as well.
	GetByID(ctx context.Context, id int64) (*entity.JobItem, error)
	Insert(ctx context.Context, item *entity.JobItem) error
	Update(ctx context.Context, item *entity.JobItem) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

type AuditRepository interface {
	Insert(ctx context.Context, e *entity.AuditEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.AuditEntry, error)
	Update(ctx context.Context, e *entity.AuditEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.AuditEntry, error)
}

// ReferenceData is the read-only category lookup.
type ReferenceData interface {
	Category(ctx context.Context, id int64) (*entity.Category, error)
	SubCategory(ctx context.Context, id int64) (*entity.SubCategory, error)
}

// DraftStore keeps the change-set of a client edit session per job.
type DraftStore interface {
	Get(ctx context.Context, jobID uuid.UUID) (entity.ChangeSet, error)
	Put(ctx context.Context, jobID uuid.UUID, cs entity.ChangeSet) error
	Clear(ctx context.Context, jobID uuid.UUID) error
}

// Locker gives one operation at a time per key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// StatusChanged is published after a transition commits.
type StatusChanged struct {
	JobID      uuid.UUID        `json:"job_id"`
	JobCode    string           `json:"job_code"`
	CustomerID uuid.UUID        `json:"customer_id"`
	From       entity.JobStatus `json:"from"`
	To         entity.JobStatus `json:"to"`
	ActorID    string           `json:"actor_id"`
	At         time.Time        `json:"at"`
}

type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
}

func jobLockKey(id uuid.UUID) string {
	return "lock:job:" + id.String()
}
