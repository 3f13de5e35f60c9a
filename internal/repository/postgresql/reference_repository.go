package postgresql

import (
	"context"

	"collection-service/internal/entity"
)

// ReferenceRepository reads the category tables maintained elsewhere.
type ReferenceRepository struct {
	db *DB
}

func NewReferenceRepository(db *DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) Category(ctx context.Context, id int64) (*entity.Category, error) {
	const q = `SELECT id, name, default_weight, ewc_code, hazard_codes FROM categories WHERE id = $1;`

	var c entity.Category
	if err := r.db.q(ctx).QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.DefaultWeight, &c.EWCCode, &c.HazardCodes); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *ReferenceRepository) SubCategory(ctx context.Context, id int64) (*entity.SubCategory, error) {
	const q = `SELECT id, category_id, name, default_weight FROM sub_categories WHERE id = $1;`

	var s entity.SubCategory
	if err := r.db.q(ctx).QueryRow(ctx, q, id).Scan(&s.ID, &s.CategoryID, &s.Name, &s.DefaultWeight); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}
