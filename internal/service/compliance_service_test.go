package service_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"collection-service/internal/entity"
)

func weights(t *testing.T, f *fixture, job *entity.Job) map[string]string {
	t.Helper()
	rows, err := f.compliance.WeightByCategory(f.ctx, job.ID)
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	out := map[string]string{}
	for _, r := range rows {
		out[r.CategoryName] = r.Weight.String()
	}
	return out
}

func TestCompliance_WeightsSurviveExpansion(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25010", entity.StatusScheduled)
	saved := f.save(job, item("J25010-01", 3, catLaptop), item("J25010-02", 1, catMonitor))

	if got := weights(t, f, job); got["Laptop"] != "7.5" || got["Monitor"] != "5" || len(got) != 2 {
		t.Fatalf("expected Laptop 7.5 and Monitor 5, got %v", got)
	}

	if _, err := f.ledger.ExpandItem(f.ctx, saved[0].ID); err != nil {
		t.Fatalf("expand: %v", err)
	}
	items := f.list(job)
	if want := []string{"J25010-01", "J25010-02", "J25010-03", "J25010-04"}; !sameStrings(numbers(items), want) {
		t.Fatalf("expected %v, got %v", want, numbers(items))
	}

	if got := weights(t, f, job); got["Laptop"] != "7.5" || got["Monitor"] != "5" {
		t.Fatalf("expected weights to be unchanged, got %v", got)
	}
}

func TestCompliance_IgnoresUnsavedAndDeleted(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25011", entity.StatusScheduled)
	saved := f.save(job, item("J25011-01", 2, catMonitor), item("J25011-02", 1, catMonitor))

	pending, _ := f.ledger.AddItem(f.ctx, job.ID, entity.StageCollection, nil)
	pending.CategoryID = catMonitor
	if _, err := f.ledger.StageDraft(f.ctx, job.ID, append(saved, *pending)); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := f.ledger.DeleteItem(f.ctx, saved[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := weights(t, f, job); got["Monitor"] != "10" {
		t.Fatalf("expected Monitor 10 from the saved ledger only, got %v", got)
	}
}

func TestCompliance_ErasureRollup(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25012", entity.StatusScheduled)

	a := item("J25012-01", 1, catLaptop)
	a.Collection.ErasureRequired = entity.ErasureYes
	a.Collection.AssetTag = "A-1"
	b := item("J25012-02", 1, catLaptop)
	b.Collection.ErasureRequired = "No"
	saved := f.save(job, a, b)

	f.setStatus(job, entity.StatusProcessing)
	erased := f.now.Add(time.Hour)
	p := saved[0].Clone()
	p.Processing = &entity.ProcessingDetails{
		SerialNumber:  "SN-77",
		ErasureMethod: "Blancco",
		ErasedAt:      &erased,
		Weight:        decimal.NewNullDecimal(decimal.RequireFromString("2.2")),
	}
	f.save(job, p, saved[1])

	groups, err := f.compliance.ErasureRollup(f.ctx, job.ID)
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if len(groups) != 1 || groups[0].CategoryName != "Laptop" || len(groups[0].Items) != 1 {
		t.Fatalf("unexpected rollup %#v", groups)
	}
	line := groups[0].Items[0]
	if line.ItemNumber != "J25012-01" || line.AssetTag != "A-1" || line.SerialNumber != "SN-77" || line.ErasureMethod != "Blancco" {
		t.Fatalf("unexpected erasure line %#v", line)
	}
}
