package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"collection-service/internal/entity"
)

type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `
id, job_id, item_number, quantity, added, category_id, sub_category_id,
default_weight, collection, processing, created_at, updated_at, deleted_at`

func (r *ItemRepository) ListByJob(ctx context.Context, jobID uuid.UUID, includeDeleted bool) ([]entity.JobItem, error) {
	q := `SELECT` + itemColumns + `
FROM job_items
WHERE job_id = $1 AND ($2 OR deleted_at IS NULL)
ORDER BY id;
`
	rows, err := r.db.q(ctx).Query(ctx, q, jobID, includeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entity.JobItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*entity.JobItem, error) {
	q := `SELECT` + itemColumns + `
FROM job_items
WHERE id = $1;
`
	return scanItem(r.db.q(ctx).QueryRow(ctx, q, id))
}

func (r *ItemRepository) Insert(ctx context.Context, item *entity.JobItem) error {
	collection, processing, err := marshalDetails(item)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO job_items (job_id, item_number, quantity, added, category_id, sub_category_id,
                       default_weight, collection, processing, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id;
`
	err = r.db.q(ctx).QueryRow(ctx, q,
		item.JobID, item.ItemNumber, item.Quantity, string(item.Added),
		nullableID(item.CategoryID), item.SubCategoryID, item.DefaultWeight,
		collection, processing, item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.NewFieldError(entity.ErrDuplicateItemNumber, "item_number", item.ItemNumber)
		}
		return err
	}
	return nil
}

func (r *ItemRepository) Update(ctx context.Context, item *entity.JobItem) error {
	collection, processing, err := marshalDetails(item)
	if err != nil {
		return err
	}

	const q = `
UPDATE job_items SET
    item_number = $2, quantity = $3, category_id = $4, sub_category_id = $5,
    default_weight = $6, collection = $7, processing = $8, updated_at = $9
WHERE id = $1 AND deleted_at IS NULL;
`
	tag, err := r.db.q(ctx).Exec(ctx, q,
		item.ID, item.ItemNumber, item.Quantity, nullableID(item.CategoryID),
		item.SubCategoryID, item.DefaultWeight, collection, processing, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.NewFieldError(entity.ErrDuplicateItemNumber, "item_number", item.ItemNumber)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *ItemRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	const q = `UPDATE job_items SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL;`

	tag, err := r.db.q(ctx).Exec(ctx, q, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// marshalDetails returns nil for absent detail sets so the columns stay NULL.
func marshalDetails(item *entity.JobItem) (collection, processing []byte, err error) {
	if item.Collection != nil {
		if collection, err = json.Marshal(item.Collection); err != nil {
			return nil, nil, fmt.Errorf("encode collection details: %w", err)
		}
	}
	if item.Processing != nil {
		if processing, err = json.Marshal(item.Processing); err != nil {
			return nil, nil, fmt.Errorf("encode processing details: %w", err)
		}
	}
	return collection, processing, nil
}

func scanItem(row scanner) (*entity.JobItem, error) {
	var (
		it              entity.JobItem
		added           string
		categoryID      *int64
		collectionBytes []byte
		processingBytes []byte
	)
	if err := row.Scan(
		&it.ID,
		&it.JobID,
		&it.ItemNumber,
		&it.Quantity,
		&added,
		&categoryID,
		&it.SubCategoryID,
		&it.DefaultWeight,
		&collectionBytes,
		&processingBytes,
		&it.CreatedAt,
		&it.UpdatedAt,
		&it.DeletedAt,
	); err != nil {
		return nil, notFound(err)
	}

	it.Added = entity.Stage(added)
	if categoryID != nil {
		it.CategoryID = *categoryID
	}
	if collectionBytes != nil {
		it.Collection = &entity.CollectionDetails{}
		if err := json.Unmarshal(collectionBytes, it.Collection); err != nil {
			return nil, fmt.Errorf("decode collection details: %w", err)
		}
	}
	if processingBytes != nil {
		it.Processing = &entity.ProcessingDetails{}
		if err := json.Unmarshal(processingBytes, it.Processing); err != nil {
			return nil, fmt.Errorf("decode processing details: %w", err)
		}
	}
	return &it, nil
}
