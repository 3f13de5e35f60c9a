package service_test

import (
	"errors"
	"testing"
	"time"

	"collection-service/internal/entity"
	"collection-service/internal/service"
)

func TestGate_CollectionProofReportsFirstMissingField(t *testing.T) {
	g := service.NewGate()

	if err := g.ValidateCollectionProof(*collectionProof()); err != nil {
		t.Fatalf("expected complete proof to pass, got %v", err)
	}

	cases := []struct {
		field  string
		mutate func(p *entity.CollectionProof)
	}{
		{"customer_signature", func(p *entity.CollectionProof) { p.CustomerSignature = ""; p.DriverName = "" }},
		{"customer_name", func(p *entity.CollectionProof) { p.CustomerName = " \t" }},
		{"items_confirmed", func(p *entity.CollectionProof) { p.ItemsConfirmed = false }},
		{"driver_signature", func(p *entity.CollectionProof) { p.DriverSignature = "" }},
		{"vehicle_registration", func(p *entity.CollectionProof) { p.VehicleRegistration = "" }},
		{"all_items_collected", func(p *entity.CollectionProof) { p.AllItemsCollected = false }},
	}
	for _, tc := range cases {
		p := collectionProof()
		tc.mutate(p)
		err := g.ValidateCollectionProof(*p)
		if !errors.Is(err, entity.ErrIncompleteProof) {
			t.Fatalf("%s: expected ErrIncompleteProof, got %v", tc.field, err)
		}
		if got := entity.FieldOf(err); got != tc.field {
			t.Fatalf("expected field %s, got %s", tc.field, got)
		}
	}
}

func TestGate_ReceiptProof(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	g := service.NewGate()
	g.SetClock(func() time.Time { return now })
	collected := now.Add(-2 * time.Hour)

	proof := entity.ReceiptProof{StaffSignature: "sig.png", StaffName: "Sam", AllItemsReceived: true}
	at, err := g.ValidateReceiptProof(proof, &collected)
	if err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if !at.Equal(now) {
		t.Fatalf("expected receipt time to default to now, got %s", at)
	}

	future := now.Add(time.Minute)
	proof.ReceivedAt = &future
	if _, err := g.ValidateReceiptProof(proof, &collected); !errors.Is(err, entity.ErrIncompleteProof) {
		t.Fatalf("expected future receipt to be refused, got %v", err)
	}

	proof.ReceivedAt = nil
	proof.AllItemsReceived = false
	_, err = g.ValidateReceiptProof(proof, &collected)
	if entity.FieldOf(err) != "all_items_received" {
		t.Fatalf("expected all_items_received, got %v", err)
	}
}
