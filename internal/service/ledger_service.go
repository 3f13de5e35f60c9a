package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"collection-service/internal/entity"
)

// ItemLedger owns the JobItems of a job: numbering, expansion, stage-scoped
// saves and soft deletion.
type ItemLedger struct {
	tx     TxManager
	jobs   JobRepository
	items  ItemRepository
	refs   ReferenceData
	drafts DraftStore
	locker Locker
	now    func() time.Time
}

// NewItemLedger wires the ledger. drafts and locker may be nil.
func NewItemLedger(tx TxManager, jobs JobRepository, items ItemRepository, refs ReferenceData, drafts DraftStore, locker Locker) *ItemLedger {
	if locker == nil {
		locker = noopLocker{}
	}
	return &ItemLedger{
		tx:     tx,
		jobs:   jobs,
		items:  items,
		refs:   refs,
		drafts: drafts,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *ItemLedger) SetClock(now func() time.Time) { l.now = now }

// ListItems returns the job's items ordered by item number.
func (l *ItemLedger) ListItems(ctx context.Context, jobID uuid.UUID, includeDeleted bool) ([]entity.JobItem, error) {
	if _, err := l.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	items, err := l.items.ListByJob(ctx, jobID, includeDeleted)
	if err != nil {
		return nil, err
	}
	sortItems(items)
	return items, nil
}

// Item returns one persisted item, deleted or not.
func (l *ItemLedger) Item(ctx context.Context, itemID int64) (*entity.JobItem, error) {
	return l.items.GetByID(ctx, itemID)
}

// AddItem builds a fresh unpersisted item for the caller to fill in and save.
// pending lists numbers already handed out in the caller's unsaved session.
func (l *ItemLedger) AddItem(ctx context.Context, jobID uuid.UUID, stage entity.Stage, pending []string) (*entity.JobItem, error) {
	job, err := l.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := checkStage(job, stage); err != nil {
		return nil, err
	}

	all, err := l.items.ListByJob(ctx, jobID, true)
	if err != nil {
		return nil, err
	}

	item := &entity.JobItem{
		JobID:         jobID,
		ItemNumber:    NextItemNumber(job.Code, UsedNumbers(all, pending...)),
		Quantity:      1,
		Added:         stage,
		DefaultWeight: decimal.Zero,
	}
	if stage == entity.StageProcessing {
		item.Processing = &entity.ProcessingDetails{}
	} else {
		item.Collection = &entity.CollectionDetails{}
	}
	return item, nil
}

// ExpandItem replaces a persisted batch with single items, all or nothing.
// Only a terminal job refuses it.
func (l *ItemLedger) ExpandItem(ctx context.Context, itemID int64) ([]entity.JobItem, error) {
	item, err := l.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Deleted() {
		return nil, entity.NewFieldError(entity.ErrNotFound, "item_id", "item is deleted")
	}

	unlock, err := l.locker.Lock(ctx, jobLockKey(item.JobID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := l.jobs.GetByID(ctx, item.JobID)
	if err != nil {
		return nil, err
	}
	if err := checkEditable(job); err != nil {
		return nil, err
	}

	var out []entity.JobItem
	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		all, err := l.items.ListByJob(ctx, job.ID, true)
		if err != nil {
			return err
		}
		var current *entity.JobItem
		for i := range all {
			if all[i].ID == itemID {
				current = &all[i]
				break
			}
		}
		if current == nil || current.Deleted() {
			return entity.NewFieldError(entity.ErrNotFound, "item_id", "item is gone")
		}
		out, err = l.expandInTx(ctx, job.Code, *current, UsedNumbers(all))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// expandInTx must run inside a transaction.
func (l *ItemLedger) expandInTx(ctx context.Context, jobCode string, item entity.JobItem, used map[string]struct{}) ([]entity.JobItem, error) {
	expanded, err := ExpandItem(item, jobCode, used)
	if err != nil {
		return nil, err
	}
	if len(expanded) == 1 {
		return expanded, nil
	}

	now := l.now()
	for i := range expanded {
		expanded[i].UpdatedAt = now
		if i == 0 {
			if err := l.items.Update(ctx, &expanded[i]); err != nil {
				return nil, fmt.Errorf("update batch %s: %w", expanded[i].ItemNumber, err)
			}
			continue
		}
		expanded[i].CreatedAt = now
		if err := l.items.Insert(ctx, &expanded[i]); err != nil {
			return nil, fmt.Errorf("insert %s: %w", expanded[i].ItemNumber, err)
		}
	}
	return expanded, nil
}

// expandAllInTx expands every live batch of the job. Must run inside a transaction.
func (l *ItemLedger) expandAllInTx(ctx context.Context, job *entity.Job) (int, error) {
	all, err := l.items.ListByJob(ctx, job.ID, true)
	if err != nil {
		return 0, err
	}
	sortItems(all)
	used := UsedNumbers(all)

	expandedBatches := 0
	for _, it := range all {
		if it.Deleted() || it.Quantity <= 1 {
			continue
		}
		if _, err := l.expandInTx(ctx, job.Code, it, used); err != nil {
			return 0, err
		}
		expandedBatches++
	}
	return expandedBatches, nil
}

// SaveItems validates the whole submitted set, then writes it in one
// transaction. Nothing is written when any item fails validation.
func (l *ItemLedger) SaveItems(ctx context.Context, jobID uuid.UUID, submitted []entity.JobItem) ([]entity.JobItem, error) {
	unlock, err := l.locker.Lock(ctx, jobLockKey(jobID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := l.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := checkEditable(job); err != nil {
		return nil, err
	}

	persisted, err := l.items.ListByJob(ctx, jobID, true)
	if err != nil {
		return nil, err
	}

	writes, err := l.prepareSave(ctx, job, persisted, submitted)
	if err != nil {
		return nil, err
	}

	now := l.now()
	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i := range writes {
			w := &writes[i]
			if !w.dirty {
				continue
			}
			w.item.UpdatedAt = now
			if w.item.ID == 0 {
				w.item.CreatedAt = now
				if err := l.items.Insert(ctx, &w.item); err != nil {
					return fmt.Errorf("insert %s: %w", w.item.ItemNumber, err)
				}
				continue
			}
			if err := l.items.Update(ctx, &w.item); err != nil {
				return fmt.Errorf("update %s: %w", w.item.ItemNumber, err)
			}
		}
		if l.drafts != nil {
			return l.drafts.Clear(ctx, jobID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.JobItem, 0, len(writes))
	for _, w := range writes {
		out = append(out, w.item)
	}
	sortItems(out)
	return out, nil
}

type pendingWrite struct {
	item  entity.JobItem
	dirty bool
}

func (l *ItemLedger) prepareSave(ctx context.Context, job *entity.Job, persisted, submitted []entity.JobItem) ([]pendingWrite, error) {
	byID := make(map[int64]entity.JobItem, len(persisted))
	holder := make(map[string]int64, len(persisted))
	for _, it := range persisted {
		byID[it.ID] = it
		holder[it.ItemNumber] = it.ID
	}

	seenNumbers := make(map[string]bool, len(submitted))
	seenIDs := make(map[int64]bool, len(submitted))
	writes := make([]pendingWrite, 0, len(submitted))

	for _, in := range submitted {
		it := in.Clone()

		if it.JobID != uuid.Nil && it.JobID != job.ID {
			return nil, entity.NewFieldError(entity.ErrNotFound, "job_id", fmt.Sprintf("item %s belongs to another job", it.ItemNumber))
		}
		it.JobID = job.ID

		if it.Quantity < 1 {
			return nil, entity.NewFieldError(entity.ErrInvalidQuantity, "quantity", fmt.Sprintf("item %s has quantity %d", it.ItemNumber, it.Quantity))
		}
		if _, err := entity.ParseItemNumber(job.Code, it.ItemNumber); err != nil {
			return nil, err
		}
		if seenNumbers[it.ItemNumber] {
			return nil, entity.NewFieldError(entity.ErrDuplicateItemNumber, "item_number", it.ItemNumber)
		}
		seenNumbers[it.ItemNumber] = true
		if owner, ok := holder[it.ItemNumber]; ok && owner != it.ID {
			return nil, entity.NewFieldError(entity.ErrDuplicateItemNumber, "item_number", it.ItemNumber+" was already issued")
		}

		var prev *entity.JobItem
		if it.ID != 0 {
			p, ok := byID[it.ID]
			if !ok || p.Deleted() || seenIDs[it.ID] {
				return nil, entity.NewFieldError(entity.ErrNotFound, "id", fmt.Sprintf("item %d", it.ID))
			}
			if it.ItemNumber != p.ItemNumber {
				return nil, entity.NewFieldError(entity.ErrInvalidItemNumber, "item_number", fmt.Sprintf("%s was issued as %s and cannot be renumbered", it.ItemNumber, p.ItemNumber))
			}
			seenIDs[it.ID] = true
			prev = &p
			it.Added = p.Added
			it.CreatedAt = p.CreatedAt
			it.DeletedAt = nil
		} else if it.Added == "" {
			it.Added = entity.StageCollection
		}

		if err := checkItemStages(job, prev, it); err != nil {
			return nil, err
		}

		if prev == nil || !prev.SameClassification(it) {
			w, err := l.classify(ctx, it)
			if err != nil {
				return nil, err
			}
			it.DefaultWeight = w
		} else {
			it.DefaultWeight = prev.DefaultWeight
		}

		writes = append(writes, pendingWrite{item: it, dirty: prev == nil || !prev.Equal(it)})
	}
	return writes, nil
}

// classify copies the default weight from reference data. A sub-category
// weight wins over the category weight.
func (l *ItemLedger) classify(ctx context.Context, it entity.JobItem) (decimal.Decimal, error) {
	if it.CategoryID == 0 {
		if it.SubCategoryID != nil {
			return decimal.Zero, entity.NewFieldError(entity.ErrNotFound, "category_id", "sub-category given without category")
		}
		return decimal.Zero, nil
	}
	cat, err := l.refs.Category(ctx, it.CategoryID)
	if err != nil {
		return decimal.Zero, entity.NewFieldError(entity.ErrNotFound, "category_id", fmt.Sprintf("category %d: %v", it.CategoryID, err))
	}
	if it.SubCategoryID == nil {
		return cat.DefaultWeight, nil
	}
	sub, err := l.refs.SubCategory(ctx, *it.SubCategoryID)
	if err != nil || sub.CategoryID != cat.ID {
		return decimal.Zero, entity.NewFieldError(entity.ErrNotFound, "sub_category_id", fmt.Sprintf("sub-category %d of category %d", *it.SubCategoryID, cat.ID))
	}
	return sub.DefaultWeight, nil
}

// DeleteItem soft-deletes a persisted item while the job is not terminal.
func (l *ItemLedger) DeleteItem(ctx context.Context, itemID int64) error {
	item, err := l.items.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Deleted() {
		return entity.NewFieldError(entity.ErrNotFound, "item_id", "item already deleted")
	}

	unlock, err := l.locker.Lock(ctx, jobLockKey(item.JobID))
	if err != nil {
		return err
	}
	defer unlock()

	job, err := l.jobs.GetByID(ctx, item.JobID)
	if err != nil {
		return err
	}
	if err := checkEditable(job); err != nil {
		return err
	}
	return l.items.SoftDelete(ctx, itemID, l.now())
}

// StageDraft records the caller's unsaved session against the persisted
// ledger and returns the change-set.
func (l *ItemLedger) StageDraft(ctx context.Context, jobID uuid.UUID, current []entity.JobItem) (entity.ChangeSet, error) {
	persisted, err := l.ListItems(ctx, jobID, false)
	if err != nil {
		return entity.ChangeSet{}, err
	}
	cs := entity.Diff(persisted, current)
	if l.drafts == nil {
		return cs, nil
	}
	if cs.Empty() {
		return cs, l.drafts.Clear(ctx, jobID)
	}
	return cs, l.drafts.Put(ctx, jobID, cs)
}

func (l *ItemLedger) DiscardDraft(ctx context.Context, jobID uuid.UUID) error {
	if l.drafts == nil {
		return nil
	}
	return l.drafts.Clear(ctx, jobID)
}

// HasUnsavedChanges reports whether an edit session is open with changes.
func (l *ItemLedger) HasUnsavedChanges(ctx context.Context, jobID uuid.UUID) (bool, error) {
	if l.drafts == nil {
		return false, nil
	}
	cs, err := l.drafts.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	return !cs.Empty(), nil
}

func checkEditable(job *entity.Job) error {
	if !job.Editable() {
		return entity.NewFieldError(entity.ErrJobNotEditable, "status", fmt.Sprintf("job is %s", job.Status))
	}
	return nil
}

func checkStage(job *entity.Job, stage entity.Stage) error {
	if err := checkEditable(job); err != nil {
		return err
	}
	if !entity.StageEditable(job.Status, stage) {
		return entity.NewFieldError(entity.ErrJobNotEditable, "stage", fmt.Sprintf("%s fields are locked while %s", stage, job.Status))
	}
	return nil
}

func checkItemStages(job *entity.Job, prev *entity.JobItem, it entity.JobItem) error {
	if prev == nil {
		return checkStage(job, it.Added)
	}
	if !prev.CollectionEqual(it) {
		if err := checkStage(job, entity.StageCollection); err != nil {
			return err
		}
	}
	if !prev.ProcessingEqual(it) {
		if err := checkStage(job, entity.StageProcessing); err != nil {
			return err
		}
	}
	return nil
}

func sortItems(items []entity.JobItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return entity.CompareItemNumbers(items[i].ItemNumber, items[j].ItemNumber) < 0
	})
}
