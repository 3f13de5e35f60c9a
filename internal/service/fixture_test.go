package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"collection-service/internal/entity"
	"collection-service/internal/repository/memory"
	"collection-service/internal/service"
)

// ---- fakes ----

type fakeQueue struct {
	requests   []entity.DocumentRequest
	priorities []service.Priority
	err        error
}

func (q *fakeQueue) Enqueue(ctx context.Context, req entity.DocumentRequest, p service.Priority) error {
	if q.err != nil {
		return q.err
	}
	q.requests = append(q.requests, req)
	q.priorities = append(q.priorities, p)
	return nil
}

type fakeEvents struct {
	events []service.StatusChanged
	err    error
}

func (e *fakeEvents) PublishStatusChanged(ctx context.Context, ev service.StatusChanged) error {
	e.events = append(e.events, ev)
	return e.err
}

// busyLocker refuses locks while busy, like a lock held by another process.
type busyLocker struct {
	busy   bool
	held   bool
	locked int
}

func (l *busyLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.locked++
	if l.busy {
		return nil, entity.NewFieldError(entity.ErrJobNotEditable, "job", "another change is in progress")
	}
	l.held = true
	return func() { l.held = false }, nil
}

// failingItems fails the n-th Insert.
type failingItems struct {
	service.ItemRepository
	failOn  int
	inserts int
}

func (f *failingItems) Insert(ctx context.Context, it *entity.JobItem) error {
	f.inserts++
	if f.inserts == f.failOn {
		return errors.New("disk full")
	}
	return f.ItemRepository.Insert(ctx, it)
}

// ---- fixture ----

const (
	catLaptop  int64 = 1
	catMonitor int64 = 2
	subGaming  int64 = 10
)

var (
	staffA   = entity.Actor{ID: "staff-a", Name: "Alice", Role: entity.RoleStaff}
	staffB   = entity.Actor{ID: "staff-b", Name: "Bob", Role: entity.RoleStaff}
	customer = entity.Actor{ID: "cust-1", Name: "Carol", Role: entity.RoleCustomer, CustomerID: uuid.MustParse("11111111-1111-1111-1111-111111111111")}
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	now    time.Time
	store  *memory.Store
	drafts *memory.DraftStore
	queue  *fakeQueue
	events *fakeEvents

	ledger     *service.ItemLedger
	audit      *service.AuditLog
	compliance *service.Compliance
	docs       *service.Documents
	jobs       *service.JobService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithItems(t, nil)
}

// newFixtureWithItems lets a test wrap the item repository.
func newFixtureWithItems(t *testing.T, wrap func(service.ItemRepository) service.ItemRepository) *fixture {
	t.Helper()

	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		now:    time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		store:  memory.NewStore(),
		drafts: memory.NewDraftStore(),
		queue:  &fakeQueue{},
		events: &fakeEvents{},
	}
	clock := func() time.Time { return f.now }

	refs := f.store.References()
	refs.PutCategory(entity.Category{ID: catLaptop, Name: "Laptop", DefaultWeight: decimal.RequireFromString("2.5"), EWCCode: "16 02 14"})
	refs.PutCategory(entity.Category{ID: catMonitor, Name: "Monitor", DefaultWeight: decimal.RequireFromString("5"), EWCCode: "16 02 13*", HazardCodes: []string{"HP14"}})
	refs.PutSubCategory(entity.SubCategory{ID: subGaming, CategoryID: catLaptop, Name: "Gaming laptop", DefaultWeight: decimal.RequireFromString("3.2")})

	var items service.ItemRepository = f.store.Items()
	if wrap != nil {
		items = wrap(items)
	}
	jobs := f.store.Jobs()

	f.ledger = service.NewItemLedger(f.store, jobs, items, refs, f.drafts, nil)
	f.ledger.SetClock(clock)
	f.audit = service.NewAuditLog(f.store.Audit())
	f.audit.SetClock(clock)
	f.compliance = service.NewCompliance(jobs, items, refs)
	f.docs = service.NewDocuments(jobs, items, f.compliance, f.queue)
	f.docs.SetClock(clock)
	f.jobs = service.NewJobService(service.JobServiceDeps{
		Tx:        f.store,
		Jobs:      jobs,
		Items:     items,
		Ledger:    f.ledger,
		Audit:     f.audit,
		Documents: f.docs,
		Events:    f.events,
	})
	f.jobs.SetClock(clock)
	return f
}

// seedJob stores a job with a fixed code and status, bypassing the state machine.
func (f *fixture) seedJob(code string, status entity.JobStatus) *entity.Job {
	f.t.Helper()
	job := &entity.Job{
		ID:         uuid.New(),
		Code:       code,
		Status:     status,
		CustomerID: customer.CustomerID,
		CreatedAt:  f.now,
		UpdatedAt:  f.now,
	}
	if err := f.store.Jobs().Create(f.ctx, job); err != nil {
		f.t.Fatalf("seed job: %v", err)
	}
	return job
}

func (f *fixture) setStatus(job *entity.Job, status entity.JobStatus) {
	f.t.Helper()
	job.Status = status
	if err := f.store.Jobs().Update(f.ctx, job); err != nil {
		f.t.Fatalf("set status: %v", err)
	}
}

func (f *fixture) save(job *entity.Job, items ...entity.JobItem) []entity.JobItem {
	f.t.Helper()
	saved, err := f.ledger.SaveItems(f.ctx, job.ID, items)
	if err != nil {
		f.t.Fatalf("save items: %v", err)
	}
	return saved
}

func (f *fixture) list(job *entity.Job) []entity.JobItem {
	f.t.Helper()
	items, err := f.ledger.ListItems(f.ctx, job.ID, false)
	if err != nil {
		f.t.Fatalf("list items: %v", err)
	}
	return items
}

func (f *fixture) status(job *entity.Job) entity.JobStatus {
	f.t.Helper()
	got, err := f.store.Jobs().GetByID(f.ctx, job.ID)
	if err != nil {
		f.t.Fatalf("get job: %v", err)
	}
	return got.Status
}

func item(number string, qty int, category int64) entity.JobItem {
	return entity.JobItem{
		ItemNumber: number,
		Quantity:   qty,
		Added:      entity.StageCollection,
		CategoryID: category,
		Collection: &entity.CollectionDetails{},
	}
}

func numbers(items []entity.JobItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ItemNumber)
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
