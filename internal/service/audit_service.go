package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"collection-service/internal/entity"
)

// AuditLog is the per-job journal. System entries are immutable; other
// entries can be changed by their author only.
type AuditLog struct {
	repo AuditRepository
	now  func() time.Time
}

func NewAuditLog(repo AuditRepository) *AuditLog {
	return &AuditLog{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (a *AuditLog) SetClock(now func() time.Time) { a.now = now }

// Append adds an entry written by actor.
func (a *AuditLog) Append(ctx context.Context, jobID uuid.UUID, actor entity.Actor, content string) (*entity.AuditEntry, error) {
	if actor.ID == "" {
		return nil, entity.NewFieldError(entity.ErrForbidden, "author_id", "anonymous author")
	}
	return a.insert(ctx, jobID, actor.ID, actor.Name, false, content)
}

// AppendSystem adds an immutable entry.
func (a *AuditLog) AppendSystem(ctx context.Context, jobID uuid.UUID, content string) (*entity.AuditEntry, error) {
	return a.insert(ctx, jobID, entity.SystemAuthor, entity.SystemAuthor, true, content)
}

func (a *AuditLog) insert(ctx context.Context, jobID uuid.UUID, authorID, authorName string, system bool, content string) (*entity.AuditEntry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, entity.NewFieldError(entity.ErrValidation, "content", "required")
	}
	now := a.now()
	e := &entity.AuditEntry{
		ID:         uuid.New(),
		JobID:      jobID,
		AuthorID:   authorID,
		AuthorName: authorName,
		System:     system,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.repo.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Edit replaces the content. Only updated_at moves.
func (a *AuditLog) Edit(ctx context.Context, entryID uuid.UUID, actor entity.Actor, content string) (*entity.AuditEntry, error) {
	e, err := a.owned(ctx, entryID, actor)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, entity.NewFieldError(entity.ErrValidation, "content", "required")
	}
	e.Content = content
	e.UpdatedAt = a.now()
	if err := a.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (a *AuditLog) Remove(ctx context.Context, entryID uuid.UUID, actor entity.Actor) error {
	if _, err := a.owned(ctx, entryID, actor); err != nil {
		return err
	}
	return a.repo.Delete(ctx, entryID)
}

// List returns the job's entries oldest first.
func (a *AuditLog) List(ctx context.Context, jobID uuid.UUID) ([]entity.AuditEntry, error) {
	entries, err := a.repo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func (a *AuditLog) owned(ctx context.Context, entryID uuid.UUID, actor entity.Actor) (*entity.AuditEntry, error) {
	e, err := a.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.System {
		return nil, entity.NewFieldError(entity.ErrForbidden, "system", "system entries are immutable")
	}
	if actor.ID == "" || e.AuthorID != actor.ID {
		return nil, entity.NewFieldError(entity.ErrForbidden, "author_id", "only the author may change this entry")
	}
	return e, nil
}
