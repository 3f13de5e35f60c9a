package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"collection-service/internal/entity"
)

type JobRepository struct{ s *Store }

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	return r.s.do(ctx, func(d *state) error {
		if _, ok := d.jobs[job.ID]; ok {
			return fmt.Errorf("job %s already exists", job.ID)
		}
		for _, j := range d.jobs {
			if j.Code == job.Code {
				return fmt.Errorf("job code %s already exists", job.Code)
			}
		}
		d.jobs[job.ID] = cloneJob(*job)
		return nil
	})
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var out *entity.Job
	err := r.s.do(ctx, func(d *state) error {
		j, ok := d.jobs[id]
		if !ok || j.DeletedAt != nil {
			return entity.ErrNotFound
		}
		c := cloneJob(j)
		out = &c
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID: the transaction already holds the store.
func (r *JobRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.GetByID(ctx, id)
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	return r.s.do(ctx, func(d *state) error {
		cur, ok := d.jobs[job.ID]
		if !ok || cur.DeletedAt != nil {
			return entity.ErrNotFound
		}
		next := cloneJob(*job)
		next.Code = cur.Code
		next.CreatedAt = cur.CreatedAt
		d.jobs[job.ID] = next
		return nil
	})
}

func (r *JobRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.s.do(ctx, func(d *state) error {
		j, ok := d.jobs[id]
		if !ok || j.DeletedAt != nil {
			return entity.ErrNotFound
		}
		j.DeletedAt = &at
		d.jobs[id] = j
		return nil
	})
}

func (r *JobRepository) List(ctx context.Context, f entity.JobFilter) ([]entity.Job, error) {
	out := []entity.Job{}
	err := r.s.do(ctx, func(d *state) error {
		for _, j := range d.jobs {
			if j.DeletedAt != nil {
				continue
			}
			if f.Status != "" && j.Status != f.Status {
				continue
			}
			if f.Group != "" && j.Status.Group() != f.Group {
				continue
			}
			if f.CustomerID != uuid.Nil && j.CustomerID != f.CustomerID {
				continue
			}
			out = append(out, cloneJob(j))
		}
		return nil
	})
	// newest first, like the SQL listing
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Code > out[j].Code
	})
	return out, err
}

func (r *JobRepository) LockCodeSequence(context.Context) error { return nil }

func (r *JobRepository) LastCodeWithPrefix(ctx context.Context, prefix string) (string, error) {
	var last string
	best := -1
	err := r.s.do(ctx, func(d *state) error {
		for _, j := range d.jobs {
			if !strings.HasPrefix(j.Code, prefix) {
				continue
			}
			n, err := strconv.Atoi(strings.TrimPrefix(j.Code, prefix))
			if err != nil {
				continue
			}
			if n > best {
				best, last = n, j.Code
			}
		}
		return nil
	})
	return last, err
}

type ItemRepository struct{ s *Store }

func (r *ItemRepository) ListByJob(ctx context.Context, jobID uuid.UUID, includeDeleted bool) ([]entity.JobItem, error) {
	out := []entity.JobItem{}
	err := r.s.do(ctx, func(d *state) error {
		for _, it := range d.items {
			if it.JobID != jobID || (!includeDeleted && it.Deleted()) {
				continue
			}
			out = append(out, it.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*entity.JobItem, error) {
	var out *entity.JobItem
	err := r.s.do(ctx, func(d *state) error {
		it, ok := d.items[id]
		if !ok {
			return entity.ErrNotFound
		}
		c := it.Clone()
		out = &c
		return nil
	})
	return out, err
}

func (r *ItemRepository) Insert(ctx context.Context, item *entity.JobItem) error {
	return r.s.do(ctx, func(d *state) error {
		if err := uniqueNumber(d, item); err != nil {
			return err
		}
		d.nextItemID++
		item.ID = d.nextItemID
		d.items[item.ID] = item.Clone()
		return nil
	})
}

func (r *ItemRepository) Update(ctx context.Context, item *entity.JobItem) error {
	return r.s.do(ctx, func(d *state) error {
		cur, ok := d.items[item.ID]
		if !ok || cur.Deleted() {
			return entity.ErrNotFound
		}
		if err := uniqueNumber(d, item); err != nil {
			return err
		}
		next := item.Clone()
		next.JobID = cur.JobID
		next.CreatedAt = cur.CreatedAt
		d.items[item.ID] = next
		return nil
	})
}

func (r *ItemRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	return r.s.do(ctx, func(d *state) error {
		it, ok := d.items[id]
		if !ok || it.Deleted() {
			return entity.ErrNotFound
		}
		it.DeletedAt = &at
		it.UpdatedAt = at
		d.items[id] = it
		return nil
	})
}

// uniqueNumber mirrors the (job_id, item_number) unique index.
func uniqueNumber(d *state, item *entity.JobItem) error {
	for id, it := range d.items {
		if id != item.ID && it.JobID == item.JobID && it.ItemNumber == item.ItemNumber {
			return entity.NewFieldError(entity.ErrDuplicateItemNumber, "item_number", item.ItemNumber)
		}
	}
	return nil
}

type AuditRepository struct{ s *Store }

func (r *AuditRepository) Insert(ctx context.Context, e *entity.AuditEntry) error {
	return r.s.do(ctx, func(d *state) error {
		d.audit[e.ID] = *e
		return nil
	})
}

func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.AuditEntry, error) {
	var out *entity.AuditEntry
	err := r.s.do(ctx, func(d *state) error {
		e, ok := d.audit[id]
		if !ok {
			return entity.ErrNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

func (r *AuditRepository) Update(ctx context.Context, e *entity.AuditEntry) error {
	return r.s.do(ctx, func(d *state) error {
		cur, ok := d.audit[e.ID]
		if !ok {
			return entity.ErrNotFound
		}
		cur.Content = e.Content
		cur.UpdatedAt = e.UpdatedAt
		d.audit[e.ID] = cur
		return nil
	})
}

func (r *AuditRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.do(ctx, func(d *state) error {
		if _, ok := d.audit[id]; !ok {
			return entity.ErrNotFound
		}
		delete(d.audit, id)
		return nil
	})
}

func (r *AuditRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.AuditEntry, error) {
	out := []entity.AuditEntry{}
	err := r.s.do(ctx, func(d *state) error {
		for _, e := range d.audit {
			if e.JobID == jobID {
				out = append(out, e)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// ReferenceRepository serves categories seeded with PutCategory and
// PutSubCategory.
type ReferenceRepository struct{ s *Store }

func (r *ReferenceRepository) Category(ctx context.Context, id int64) (*entity.Category, error) {
	var out *entity.Category
	err := r.s.do(ctx, func(d *state) error {
		c, ok := d.categories[id]
		if !ok {
			return entity.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *ReferenceRepository) SubCategory(ctx context.Context, id int64) (*entity.SubCategory, error) {
	var out *entity.SubCategory
	err := r.s.do(ctx, func(d *state) error {
		c, ok := d.subs[id]
		if !ok {
			return entity.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *ReferenceRepository) PutCategory(c entity.Category) {
	_ = r.s.do(context.Background(), func(d *state) error {
		d.categories[c.ID] = c
		return nil
	})
}

func (r *ReferenceRepository) PutSubCategory(c entity.SubCategory) {
	_ = r.s.do(context.Background(), func(d *state) error {
		d.subs[c.ID] = c
		return nil
	})
}
