// Package memory is an in-process store for local runs and tests.
// Transactions snapshot the whole store and restore it on error.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"collection-service/internal/entity"
)

type txKey struct{}

type state struct {
	jobs       map[uuid.UUID]entity.Job
	items      map[int64]entity.JobItem
	audit      map[uuid.UUID]entity.AuditEntry
	categories map[int64]entity.Category
	subs       map[int64]entity.SubCategory
	nextItemID int64
}

func (s *state) clone() *state {
	c := &state{
		jobs:       make(map[uuid.UUID]entity.Job, len(s.jobs)),
		items:      make(map[int64]entity.JobItem, len(s.items)),
		audit:      make(map[uuid.UUID]entity.AuditEntry, len(s.audit)),
		categories: s.categories,
		subs:       s.subs,
		nextItemID: s.nextItemID,
	}
	for k, v := range s.jobs {
		c.jobs[k] = cloneJob(v)
	}
	for k, v := range s.items {
		c.items[k] = v.Clone()
	}
	for k, v := range s.audit {
		c.audit[k] = v
	}
	return c
}

// Store holds every table. One transaction runs at a time; calls made outside
// a transaction take the same lock for their duration.
type Store struct {
	mu   sync.Mutex
	data *state
}

func NewStore() *Store {
	return &Store{data: &state{
		jobs:       map[uuid.UUID]entity.Job{},
		items:      map[int64]entity.JobItem{},
		audit:      map[uuid.UUID]entity.AuditEntry{},
		categories: map[int64]entity.Category{},
		subs:       map[int64]entity.SubCategory{},
	}}
}

// WithinTx runs fn against the store and rolls everything back if fn fails.
// Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// do runs fn with the store locked unless ctx already owns the lock.
func (s *Store) do(ctx context.Context, fn func(d *state) error) error {
	if inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func (s *Store) Jobs() *JobRepository { return &JobRepository{s: s} }
func (s *Store) Items() *ItemRepository { return &ItemRepository{s: s} }
func (s *Store) Audit() *AuditRepository { return &AuditRepository{s: s} }
func (s *Store) References() *ReferenceRepository { return &ReferenceRepository{s: s} }

func cloneJob(j entity.Job) entity.Job {
	c := j
	c.ScheduledFor = copyTime(j.ScheduledFor)
	c.CollectedAt = copyTime(j.CollectedAt)
	c.ReceivedAt = copyTime(j.ReceivedAt)
	c.ProcessedAt = copyTime(j.ProcessedAt)
	c.CompletedAt = copyTime(j.CompletedAt)
	c.DeletedAt = copyTime(j.DeletedAt)
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
