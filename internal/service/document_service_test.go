package service_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"collection-service/internal/entity"
	"collection-service/internal/repository/memory"
	"collection-service/internal/service"
)

func TestDocumentAvailable(t *testing.T) {
	cases := []struct {
		kind   entity.DocumentKind
		status entity.JobStatus
		want   bool
	}{
		{entity.DocWasteTransferNote, entity.StatusScheduled, false},
		{entity.DocWasteTransferNote, entity.StatusCollected, true},
		{entity.DocWasteTransferNote, entity.StatusComplete, true},
		{entity.DocWasteTransferNote, entity.StatusCanceled, false},
		{entity.DocDestructionCertificate, entity.StatusReceived, false},
		{entity.DocDestructionCertificate, entity.StatusProcessing, true},
		{entity.DocDestructionCertificate, entity.StatusComplete, true},
		{entity.DocumentKind("invoice"), entity.StatusComplete, false},
	}
	for _, c := range cases {
		if got := service.DocumentAvailable(c.kind, c.status); got != c.want {
			t.Fatalf("DocumentAvailable(%s, %s) = %v, want %v", c.kind, c.status, got, c.want)
		}
	}
}

func TestDocuments_RequestDocument(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25030", entity.StatusCollected)

	req, err := f.docs.RequestDocument(f.ctx, staffA, job.ID, entity.DocWasteTransferNote)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.JobID != job.ID || req.RequestedBy != staffA.ID || !req.RequestedAt.Equal(f.now) {
		t.Fatalf("unexpected request %+v", req)
	}
	if len(f.queue.requests) != 1 || f.queue.priorities[0] != service.PriorityHigh {
		t.Fatalf("expected one high-priority request, got %+v", f.queue.priorities)
	}

	if _, err := f.docs.RequestDocument(f.ctx, staffA, job.ID, entity.DocDestructionCertificate); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.docs.RequestDocument(f.ctx, staffA, job.ID, entity.DocumentKind("invoice")); !errors.Is(err, entity.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	stranger := entity.Actor{ID: "cust-2", Role: entity.RoleCustomer, CustomerID: uuid.New()}
	if _, err := f.docs.RequestDocument(f.ctx, stranger, job.ID, entity.DocWasteTransferNote); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another customer, got %v", err)
	}
	if len(f.queue.requests) != 1 {
		t.Fatalf("rejected requests must not be queued, got %d", len(f.queue.requests))
	}
}

func TestDocuments_NoQueue(t *testing.T) {
	store := memory.NewStore()
	docs := service.NewDocuments(store.Jobs(), store.Items(), service.NewCompliance(store.Jobs(), store.Items(), store.References()), nil)

	job := &entity.Job{ID: uuid.New(), Code: "J25031", Status: entity.StatusComplete}
	if err := store.Jobs().Create(t.Context(), job); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := docs.RequestDocument(t.Context(), staffA, job.ID, entity.DocDestructionCertificate); !errors.Is(err, service.ErrQueueUnavailable) {
		t.Fatalf("expected ErrQueueUnavailable, got %v", err)
	}
}

func TestDocuments_SnapshotCarriesRollup(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob("J25032", entity.StatusScheduled)
	f.save(job, item("J25032-02", 1, catMonitor), item("J25032-01", 1, catLaptop))
	f.setStatus(job, entity.StatusCollected)

	snap, err := f.docs.Snapshot(f.ctx, job.ID, entity.DocWasteTransferNote)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got := numbers(snap.Items); !sameStrings(got, []string{"J25032-01", "J25032-02"}) {
		t.Fatalf("items not ordered: %v", got)
	}
	if len(snap.Weights) != 2 || snap.Erasure != nil {
		t.Fatalf("expected two weight rows and no erasure, got %+v", snap)
	}

	if _, err := f.docs.Snapshot(f.ctx, job.ID, entity.DocDestructionCertificate); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
