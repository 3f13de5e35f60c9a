package entity_test

import (
	"testing"

	"collection-service/internal/entity"
)

func TestStatusGroups(t *testing.T) {
	cases := map[entity.JobStatus]entity.StatusGroup{
		entity.StatusQuoteDraft:      entity.GroupQuotes,
		entity.StatusQuoteRejected:   entity.GroupQuotes,
		entity.StatusRequestDraft:    entity.GroupCollections,
		entity.StatusNeedsScheduling: entity.GroupCollections,
		entity.StatusPostponed:       entity.GroupCollections,
		entity.StatusCollected:       entity.GroupProcessing,
		entity.StatusReceived:        entity.GroupProcessing,
		entity.StatusProcessing:      entity.GroupProcessing,
		entity.StatusComplete:        entity.GroupCompleted,
		entity.StatusCanceled:        entity.GroupCompleted,
	}
	for status, want := range cases {
		if got := status.Group(); got != want {
			t.Fatalf("%s: expected group %s, got %s", status, want, got)
		}
	}

	if entity.JobStatus("Lost").Valid() {
		t.Fatalf("expected unknown status to be invalid")
	}
	for _, s := range entity.AllStatuses {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
}

func TestStageEditable(t *testing.T) {
	collection := map[entity.JobStatus]bool{
		entity.StatusQuoteDraft:     true,
		entity.StatusQuoteRequested: true,
		entity.StatusQuoteProvided:  false,
		entity.StatusRequestPending: true,
		entity.StatusScheduled:      true,
		entity.StatusCollected:      false,
		entity.StatusComplete:       false,
		entity.StatusCanceled:       false,
	}
	for status, want := range collection {
		if got := entity.StageEditable(status, entity.StageCollection); got != want {
			t.Fatalf("collection fields in %s: expected %v, got %v", status, want, got)
		}
	}

	processing := map[entity.JobStatus]bool{
		entity.StatusQuoteRequested: false,
		entity.StatusScheduled:      false,
		entity.StatusCollected:      true,
		entity.StatusReceived:       true,
		entity.StatusProcessing:     true,
		entity.StatusComplete:       false,
	}
	for status, want := range processing {
		if got := entity.StageEditable(status, entity.StageProcessing); got != want {
			t.Fatalf("processing fields in %s: expected %v, got %v", status, want, got)
		}
	}
}
