package service_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"collection-service/internal/entity"
	"collection-service/internal/service"
)

func collectionProof() *entity.CollectionProof {
	return &entity.CollectionProof{
		CustomerSignature:   "signatures/J25001/customer.png",
		CustomerName:        "Carol",
		ItemsConfirmed:      true,
		DriverSignature:     "signatures/J25001/driver.png",
		DriverName:          "Dan",
		VehicleRegistration: "AB12 CDE",
		AllItemsCollected:   true,
	}
}

func TestJobService_CreateJob_CodeSkipsDeleted(t *testing.T) {
	f := newFixture(t)

	first, err := f.jobs.CreateJob(f.ctx, staffA, service.CreateJobRequest{Kind: entity.KindCollection, CustomerID: customer.CustomerID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Code != "J25001" || first.Status != entity.StatusRequestDraft {
		t.Fatalf("unexpected job %s %s", first.Code, first.Status)
	}
	if err := f.jobs.DeleteJob(f.ctx, staffA, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	second, err := f.jobs.CreateJob(f.ctx, customer, service.CreateJobRequest{Kind: entity.KindQuote})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.Code != "J25002" {
		t.Fatalf("expected J25002, got %s", second.Code)
	}
	if second.Status != entity.StatusQuoteDraft || second.CustomerID != customer.CustomerID {
		t.Fatalf("unexpected job %#v", second)
	}

	// next year restarts the sequence
	f.now = time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	third, err := f.jobs.CreateJob(f.ctx, staffA, service.CreateJobRequest{Kind: entity.KindQuote, CustomerID: customer.CustomerID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if third.Code != "J26001" {
		t.Fatalf("expected J26001, got %s", third.Code)
	}
}

func TestJobService_CreateJob_ValidatesPhone(t *testing.T) {
	f := newFixture(t)

	job, err := f.jobs.CreateJob(f.ctx, staffA, service.CreateJobRequest{
		Kind:       entity.KindCollection,
		CustomerID: customer.CustomerID,
		Site:       entity.CollectionSite{ContactPhone: "020 7946 0018"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Site.ContactPhone != "+442079460018" {
		t.Fatalf("expected E.164 phone, got %q", job.Site.ContactPhone)
	}

	_, err = f.jobs.CreateJob(f.ctx, staffA, service.CreateJobRequest{
		Kind:       entity.KindCollection,
		CustomerID: customer.CustomerID,
		Site:       entity.CollectionSite{ContactPhone: "12"},
	})
	if !errors.Is(err, entity.ErrValidation) || entity.FieldOf(err) != "contact_phone" {
		t.Fatalf("expected contact_phone validation error, got %v", err)
	}
}

func TestJobService_CollectedRequiresDriverSignature(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25001", entity.StatusScheduled)
	f.save(job, item("J25001-01", 1, catLaptop))

	proof := collectionProof()
	proof.DriverSignature = "  "
	_, err := f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusCollected, Collection: proof})
	if !errors.Is(err, entity.ErrIncompleteProof) {
		t.Fatalf("expected ErrIncompleteProof, got %v", err)
	}
	if entity.FieldOf(err) != "driver_signature" {
		t.Fatalf("expected driver_signature, got %q", entity.FieldOf(err))
	}
	if got := f.status(job); got != entity.StatusScheduled {
		t.Fatalf("expected status to stay Scheduled, got %s", got)
	}
	if len(f.events.events) != 0 || len(f.queue.requests) != 0 {
		t.Fatalf("expected no side effects")
	}
}

func TestJobService_CollectedStoresProofAndQueuesNote(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25001", entity.StatusScheduled)

	got, err := f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusCollected, Collection: collectionProof()})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Status != entity.StatusCollected || got.CollectedAt == nil || !got.CollectedAt.Equal(f.now) {
		t.Fatalf("unexpected job after collection %#v", got)
	}
	if got.Signatures.DriverName != "Dan" || got.VehicleReg != "AB12 CDE" {
		t.Fatalf("proof not stored: %#v", got.Signatures)
	}

	if len(f.queue.requests) != 1 || f.queue.requests[0].Kind != entity.DocWasteTransferNote || f.queue.priorities[0] != service.PriorityHigh {
		t.Fatalf("expected waste transfer note on the high lane, got %#v", f.queue.requests)
	}
	if len(f.events.events) != 1 || f.events.events[0].From != entity.StatusScheduled || f.events.events[0].To != entity.StatusCollected {
		t.Fatalf("unexpected events %#v", f.events.events)
	}

	entries, err := f.audit.List(f.ctx, job.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(entries) != 1 || !entries[0].System || !strings.Contains(entries[0].Content, "Collected") {
		t.Fatalf("expected one system audit entry, got %#v", entries)
	}

	// a receipt before collection is refused
	early := f.now.Add(-time.Hour)
	_, err = f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{
		To:      entity.StatusReceived,
		Receipt: &entity.ReceiptProof{StaffSignature: "s.png", StaffName: "Sam", ReceivedAt: &early, AllItemsReceived: true},
	})
	if !errors.Is(err, entity.ErrIncompleteProof) || entity.FieldOf(err) != "received_at" {
		t.Fatalf("expected received_at proof error, got %v", err)
	}
}

func TestJobService_DirtySessionBlocksTransition(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25001", entity.StatusNeedsScheduling)
	saved := f.save(job, item("J25001-01", 1, catLaptop))

	edited := saved[0].Clone()
	edited.Quantity = 2
	if _, err := f.ledger.StageDraft(f.ctx, job.ID, []entity.JobItem{edited}); err != nil {
		t.Fatalf("stage: %v", err)
	}

	when := f.now.Add(48 * time.Hour)
	_, err := f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusScheduled, ScheduledFor: &when})
	if !errors.Is(err, entity.ErrJobNotEditable) {
		t.Fatalf("expected ErrJobNotEditable, got %v", err)
	}

	if err := f.ledger.DiscardDraft(f.ctx, job.ID); err != nil {
		t.Fatalf("discard: %v", err)
	}
	got, err := f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusScheduled, ScheduledFor: &when})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.ScheduledFor == nil || !got.ScheduledFor.Equal(when) {
		t.Fatalf("expected schedule to be stored")
	}
}

func TestJobService_AcceptQuoteExpandsItems(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25003", entity.StatusQuoteProvided)

	// refused without items
	_, err := f.jobs.Transition(f.ctx, customer, job.ID, service.TransitionRequest{To: entity.StatusNeedsScheduling})
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition with an empty ledger, got %v", err)
	}

	f.setStatus(job, entity.StatusQuoteRequested)
	f.save(job, item("J25003-01", 3, catLaptop), item("J25003-02", 1, catMonitor))
	_, err = f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusQuoteProvided, QuoteAmount: decimal.NewNullDecimal(decimal.RequireFromString("120"))})
	if err != nil {
		t.Fatalf("provide quote: %v", err)
	}

	if _, err := f.jobs.Transition(f.ctx, customer, job.ID, service.TransitionRequest{To: entity.StatusNeedsScheduling}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	got := f.list(job)
	if want := []string{"J25003-01", "J25003-02", "J25003-03", "J25003-04"}; !sameStrings(numbers(got), want) {
		t.Fatalf("expected %v, got %v", want, numbers(got))
	}
	for _, it := range got {
		if it.Quantity != 1 {
			t.Fatalf("expected expanded items, %s has quantity %d", it.ItemNumber, it.Quantity)
		}
	}
}

func TestJobService_TransitionRules(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25004", entity.StatusQuoteRequested)

	// customers cannot price their own quote
	_, err := f.jobs.Transition(f.ctx, customer, job.ID, service.TransitionRequest{To: entity.StatusQuoteProvided, QuoteAmount: decimal.NewNullDecimal(decimal.NewFromInt(10))})
	if !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// skipping stages is refused
	_, err = f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusCollected, Collection: collectionProof()})
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// a zero quote is refused
	_, err = f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusQuoteProvided})
	if !errors.Is(err, entity.ErrIncompleteProof) || entity.FieldOf(err) != "quote_amount" {
		t.Fatalf("expected ErrIncompleteProof on quote_amount, got %v", err)
	}

	// rejecting a requested quote needs a reason
	_, err = f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusQuoteRejected})
	if !errors.Is(err, entity.ErrIncompleteProof) || entity.FieldOf(err) != "reason" {
		t.Fatalf("expected ErrIncompleteProof on reason, got %v", err)
	}

	if _, err := f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusCanceled, Reason: "duplicate"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusQuoteRequested})
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from a terminal state, got %v", err)
	}

	// other customers do not see the job at all
	stranger := customer
	stranger.CustomerID = [16]byte{9}
	if _, err := f.jobs.GetJob(f.ctx, stranger, job.ID); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another customer, got %v", err)
	}
}

func TestJobService_EventFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("pubsub down")
	f.queue.err = errors.New("redis down")
	job := f.seedJob("J25005", entity.StatusProcessing)

	got, err := f.jobs.Transition(f.ctx, staffA, job.ID, service.TransitionRequest{To: entity.StatusComplete})
	if err != nil {
		t.Fatalf("expected transition to succeed, got %v", err)
	}
	if got.Status != entity.StatusComplete || got.CompletedAt == nil {
		t.Fatalf("unexpected job %#v", got)
	}
	if f.status(job) != entity.StatusComplete {
		t.Fatalf("expected committed status")
	}
}

func TestNextStatuses(t *testing.T) {
	got := service.NextStatuses(customer, entity.StatusQuoteProvided)
	want := []entity.JobStatus{entity.StatusQuoteRejected, entity.StatusNeedsScheduling}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got := service.NextStatuses(staffA, entity.StatusComplete); len(got) != 0 {
		t.Fatalf("expected nothing after Complete, got %v", got)
	}
}

func TestJobService_DeleteJobWaitsForJobLock(t *testing.T) {
	f := newFixture(t)
	locker := &busyLocker{}
	f.jobs = service.NewJobService(service.JobServiceDeps{
		Tx:     f.store,
		Jobs:   f.store.Jobs(),
		Items:  f.store.Items(),
		Ledger: f.ledger,
		Audit:  f.audit,
		Locker: locker,
	})
	job := f.seedJob("J25050", entity.StatusRequestDraft)

	locker.busy = true
	if err := f.jobs.DeleteJob(f.ctx, staffA, job.ID); !errors.Is(err, entity.ErrJobNotEditable) {
		t.Fatalf("expected ErrJobNotEditable while the job is locked, got %v", err)
	}
	if _, err := f.store.Jobs().GetByID(f.ctx, job.ID); err != nil {
		t.Fatalf("job must survive a refused delete: %v", err)
	}

	locker.busy = false
	if err := f.jobs.DeleteJob(f.ctx, staffA, job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if locker.locked != 2 || locker.held {
		t.Fatalf("expected two lock attempts and a released lock, got %d held=%v", locker.locked, locker.held)
	}
}
