package postgresql_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"collection-service/internal/entity"
	"collection-service/internal/repository/postgresql"
)

func openDB(t *testing.T) *postgresql.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 and POSTGRES_DSN to run")
	}
	ctx := context.Background()
	pool, err := postgresql.NewPool(ctx, os.Getenv("POSTGRES_DSN"))
	if err != nil {
		t.Fatalf("pg: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := postgresql.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return postgresql.NewDB(pool)
}

func TestPostgres_ItemsRollBackWithTx(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	jobs := postgresql.NewJobRepository(db)
	items := postgresql.NewItemRepository(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &entity.Job{
		ID:         uuid.New(),
		Code:       "J99" + uuid.NewString()[:6],
		Status:     entity.StatusRequestDraft,
		CustomerID: uuid.New(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(ctx context.Context) error {
		it := &entity.JobItem{JobID: job.ID, ItemNumber: job.Code + "-01", Quantity: 1, Added: entity.StageCollection, Collection: &entity.CollectionDetails{}}
		if err := items.Insert(ctx, it); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := items.ListByJob(ctx, job.ID, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected rollback, got %d items", len(got))
	}

	first := &entity.JobItem{JobID: job.ID, ItemNumber: job.Code + "-01", Quantity: 1, Added: entity.StageCollection}
	if err := items.Insert(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := &entity.JobItem{JobID: job.ID, ItemNumber: job.Code + "-01", Quantity: 1, Added: entity.StageCollection}
	if err := items.Insert(ctx, dup); !errors.Is(err, entity.ErrDuplicateItemNumber) {
		t.Fatalf("expected ErrDuplicateItemNumber, got %v", err)
	}

	if err := jobs.SoftDelete(ctx, job.ID, now); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := jobs.GetByID(ctx, job.ID); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
