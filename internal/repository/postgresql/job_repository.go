package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"collection-service/internal/entity"
)

type JobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
id, code, status, customer_id, collector_id, site, vehicle_reg, driver_name,
scheduled_for, quote_amount, quote_narrative, rejection_reason, signatures,
collected_at, received_at, processed_at, completed_at, created_at, updated_at, deleted_at`

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	site, sigs, err := marshalJobJSON(job)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO jobs (id, code, status, customer_id, collector_id, site, vehicle_reg, driver_name,
                  scheduled_for, quote_amount, quote_narrative, rejection_reason, signatures,
                  created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
`
	_, err = r.db.q(ctx).Exec(ctx, q,
		job.ID, job.Code, string(job.Status), job.CustomerID, job.CollectorID, site,
		job.VehicleReg, job.DriverName, job.ScheduledFor, job.QuoteAmount,
		job.QuoteNarrative, job.RejectionReason, sigs, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q := `SELECT` + jobColumns + `
FROM jobs
WHERE id = $1 AND deleted_at IS NULL;
`
	return scanJob(r.db.q(ctx).QueryRow(ctx, q, id))
}

// GetForUpdate locks the row until the surrounding transaction ends.
func (r *JobRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q := `SELECT` + jobColumns + `
FROM jobs
WHERE id = $1 AND deleted_at IS NULL
FOR UPDATE;
`
	return scanJob(r.db.q(ctx).QueryRow(ctx, q, id))
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	site, sigs, err := marshalJobJSON(job)
	if err != nil {
		return err
	}

	const q = `
UPDATE jobs SET
    status = $2, collector_id = $3, site = $4, vehicle_reg = $5, driver_name = $6,
    scheduled_for = $7, quote_amount = $8, quote_narrative = $9, rejection_reason = $10,
    signatures = $11, collected_at = $12, received_at = $13, processed_at = $14,
    completed_at = $15, updated_at = $16
WHERE id = $1 AND deleted_at IS NULL;
`
	tag, err := r.db.q(ctx).Exec(ctx, q,
		job.ID, string(job.Status), job.CollectorID, site, job.VehicleReg, job.DriverName,
		job.ScheduledFor, job.QuoteAmount, job.QuoteNarrative, job.RejectionReason,
		sigs, job.CollectedAt, job.ReceivedAt, job.ProcessedAt, job.CompletedAt, job.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *JobRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE jobs SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL;`

	tag, err := r.db.q(ctx).Exec(ctx, q, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *JobRepository) List(ctx context.Context, f entity.JobFilter) ([]entity.Job, error) {
	var (
		where = []string{"deleted_at IS NULL"}
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Group != "" {
		var statuses []string
		for _, s := range entity.AllStatuses {
			if s.Group() == f.Group {
				statuses = append(statuses, string(s))
			}
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if f.CustomerID != uuid.Nil {
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}

	q := `SELECT` + jobColumns + `
FROM jobs
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY created_at DESC, code DESC;
`
	rows, err := r.db.q(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entity.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// LockCodeSequence takes a transaction-scoped advisory lock.
func (r *JobRepository) LockCodeSequence(ctx context.Context) error {
	_, err := r.db.q(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('jobs.code'));`)
	return err
}

func (r *JobRepository) LastCodeWithPrefix(ctx context.Context, prefix string) (string, error) {
	// same prefix: a longer code has the higher sequence
	const q = `
SELECT code FROM jobs
WHERE code LIKE $1 || '%'
ORDER BY length(code) DESC, code DESC
LIMIT 1;
`
	var code string
	err := r.db.q(ctx).QueryRow(ctx, q, prefix).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return code, nil
}

func marshalJobJSON(job *entity.Job) (site, sigs []byte, err error) {
	if site, err = json.Marshal(job.Site); err != nil {
		return nil, nil, fmt.Errorf("encode site: %w", err)
	}
	if sigs, err = json.Marshal(job.Signatures); err != nil {
		return nil, nil, fmt.Errorf("encode signatures: %w", err)
	}
	return site, sigs, nil
}

func scanJob(row scanner) (*entity.Job, error) {
	var (
		job        entity.Job
		statusText string
		siteBytes  []byte
		sigBytes   []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Code,
		&statusText,
		&job.CustomerID,
		&job.CollectorID,
		&siteBytes,
		&job.VehicleReg,
		&job.DriverName,
		&job.ScheduledFor,
		&job.QuoteAmount,
		&job.QuoteNarrative,
		&job.RejectionReason,
		&sigBytes,
		&job.CollectedAt,
		&job.ReceivedAt,
		&job.ProcessedAt,
		&job.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.DeletedAt,
	); err != nil {
		return nil, notFound(err)
	}

	job.Status = entity.JobStatus(statusText)
	if len(siteBytes) > 0 {
		if err := json.Unmarshal(siteBytes, &job.Site); err != nil {
			return nil, fmt.Errorf("decode site: %w", err)
		}
	}
	if len(sigBytes) > 0 {
		if err := json.Unmarshal(sigBytes, &job.Signatures); err != nil {
			return nil, fmt.Errorf("decode signatures: %w", err)
		}
	}
	return &job, nil
}
