package postgresql

import (
	"context"

	"github.com/google/uuid"

	"collection-service/internal/entity"
)

type AuditRepository struct {
	db *DB
}

func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, e *entity.AuditEntry) error {
	const q = `
INSERT INTO audit_entries (id, job_id, author_id, author_name, system, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.db.q(ctx).Exec(ctx, q,
		e.ID, e.JobID, e.AuthorID, e.AuthorName, e.System, e.Content, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.AuditEntry, error) {
	const q = `
SELECT id, job_id, author_id, author_name, system, content, created_at, updated_at
FROM audit_entries
WHERE id = $1;
`
	return scanAudit(r.db.q(ctx).QueryRow(ctx, q, id))
}

// Update touches content and updated_at only.
func (r *AuditRepository) Update(ctx context.Context, e *entity.AuditEntry) error {
	const q = `UPDATE audit_entries SET content = $2, updated_at = $3 WHERE id = $1 AND NOT system;`

	tag, err := r.db.q(ctx).Exec(ctx, q, e.ID, e.Content, e.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *AuditRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM audit_entries WHERE id = $1 AND NOT system;`

	tag, err := r.db.q(ctx).Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *AuditRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.AuditEntry, error) {
	const q = `
SELECT id, job_id, author_id, author_name, system, content, created_at, updated_at
FROM audit_entries
WHERE job_id = $1
ORDER BY created_at, id;
`
	rows, err := r.db.q(ctx).Query(ctx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entity.AuditEntry{}
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanAudit(row scanner) (*entity.AuditEntry, error) {
	var e entity.AuditEntry
	if err := row.Scan(&e.ID, &e.JobID, &e.AuthorID, &e.AuthorName, &e.System, &e.Content, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}
