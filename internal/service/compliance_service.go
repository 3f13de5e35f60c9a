package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"collection-service/internal/entity"
)

// Compliance derives document rollups from the persisted ledger only.
type Compliance struct {
	jobs  JobRepository
	items ItemRepository
	refs  ReferenceData
}

func NewCompliance(jobs JobRepository, items ItemRepository, refs ReferenceData) *Compliance {
	return &Compliance{jobs: jobs, items: items, refs: refs}
}

type weightKey struct {
	category int64
	sub      int64
}

// WeightByCategory sums quantity x default weight of live collection-stage
// items per category and sub-category.
func (c *Compliance) WeightByCategory(ctx context.Context, jobID uuid.UUID) ([]entity.CategoryWeight, error) {
	items, err := c.liveItems(ctx, jobID)
	if err != nil {
		return nil, err
	}

	rows := map[weightKey]*entity.CategoryWeight{}
	var keys []weightKey
	for _, it := range items {
		if it.Added != entity.StageCollection {
			continue
		}
		k := weightKey{category: it.CategoryID}
		if it.SubCategoryID != nil {
			k.sub = *it.SubCategoryID
		}
		row, ok := rows[k]
		if !ok {
			row, err = c.weightRow(ctx, it)
			if err != nil {
				return nil, err
			}
			rows[k] = row
			keys = append(keys, k)
		}
		row.Quantity += it.Quantity
		row.Weight = row.Weight.Add(it.DefaultWeight.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].category != keys[j].category {
			return keys[i].category < keys[j].category
		}
		return keys[i].sub < keys[j].sub
	})
	out := make([]entity.CategoryWeight, 0, len(keys))
	for _, k := range keys {
		out = append(out, *rows[k])
	}
	return out, nil
}

func (c *Compliance) weightRow(ctx context.Context, it entity.JobItem) (*entity.CategoryWeight, error) {
	row := &entity.CategoryWeight{
		CategoryID:    it.CategoryID,
		CategoryName:  "Unclassified",
		SubCategoryID: it.SubCategoryID,
		HazardCodes:   []string{},
		Weight:        decimal.Zero,
	}
	if it.CategoryID == 0 {
		return row, nil
	}
	name, cat, err := c.category(ctx, it.CategoryID)
	if err != nil {
		return nil, err
	}
	row.CategoryName = name
	if cat != nil {
		row.EWCCode = cat.EWCCode
		row.HazardCodes = append(row.HazardCodes, cat.HazardCodes...)
	}
	if it.SubCategoryID != nil {
		sub, err := c.refs.SubCategory(ctx, *it.SubCategoryID)
		switch {
		case err == nil:
			row.SubCategoryName = sub.Name
		case errors.Is(err, entity.ErrNotFound):
			row.SubCategoryName = fmt.Sprintf("sub-category %d", *it.SubCategoryID)
		default:
			return nil, err
		}
	}
	return row, nil
}

// ErasureRollup lists erasure-required items grouped by category.
func (c *Compliance) ErasureRollup(ctx context.Context, jobID uuid.UUID) ([]entity.ErasureGroup, error) {
	items, err := c.liveItems(ctx, jobID)
	if err != nil {
		return nil, err
	}

	groups := map[int64]*entity.ErasureGroup{}
	var ids []int64
	for _, it := range items {
		if it.Collection == nil || it.Collection.ErasureRequired != entity.ErasureYes {
			continue
		}
		g, ok := groups[it.CategoryID]
		if !ok {
			g = &entity.ErasureGroup{CategoryID: it.CategoryID, CategoryName: "Unclassified"}
			if it.CategoryID != 0 {
				name, _, err := c.category(ctx, it.CategoryID)
				if err != nil {
					return nil, err
				}
				g.CategoryName = name
			}
			groups[it.CategoryID] = g
			ids = append(ids, it.CategoryID)
		}
		g.Items = append(g.Items, erasureLine(it))
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]entity.ErasureGroup, 0, len(ids))
	for _, id := range ids {
		out = append(out, *groups[id])
	}
	return out, nil
}

func erasureLine(it entity.JobItem) entity.ErasureLine {
	line := entity.ErasureLine{
		ItemNumber:   it.ItemNumber,
		AssetTag:     it.Collection.AssetTag,
		SerialNumber: it.Collection.SerialNumber,
	}
	if p := it.Processing; p != nil {
		if p.SerialNumber != "" {
			line.SerialNumber = p.SerialNumber
		}
		line.ErasureMethod = p.ErasureMethod
		line.ErasedAt = p.ErasedAt
	}
	return line
}

// category returns a display name even when the reference row has gone.
func (c *Compliance) category(ctx context.Context, id int64) (string, *entity.Category, error) {
	cat, err := c.refs.Category(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Sprintf("category %d", id), nil, nil
		}
		return "", nil, err
	}
	return cat.Name, cat, nil
}

func (c *Compliance) liveItems(ctx context.Context, jobID uuid.UUID) ([]entity.JobItem, error) {
	if _, err := c.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	items, err := c.items.ListByJob(ctx, jobID, false)
	if err != nil {
		return nil, err
	}
	sortItems(items)
	return items, nil
}
