package service

import (
	"time"

	"github.com/shopspring/decimal"

	"collection-service/internal/entity"
)

// TransitionRequest carries whatever the target status needs.
type TransitionRequest struct {
	To             entity.JobStatus        `json:"to"`
	QuoteAmount    decimal.NullDecimal     `json:"quote_amount"`
	QuoteNarrative string                  `json:"quote_narrative,omitempty"`
	Reason         string                  `json:"reason,omitempty"`
	ScheduledFor   *time.Time              `json:"scheduled_for,omitempty"`
	Collection     *entity.CollectionProof `json:"collection_proof,omitempty"`
	Receipt        *entity.ReceiptProof    `json:"receipt_proof,omitempty"`
}

type who uint8

const (
	staffOnly who = iota
	anyone
)

type edge struct {
	from, to entity.JobStatus
}

// transitions lists every edge outside cancellation.
var transitions = map[edge]who{
	{entity.StatusQuoteDraft, entity.StatusQuoteRequested}:      anyone,
	{entity.StatusQuoteRequested, entity.StatusQuoteProvided}:   staffOnly,
	{entity.StatusQuoteRequested, entity.StatusQuoteRejected}:   staffOnly,
	{entity.StatusQuoteProvided, entity.StatusNeedsScheduling}:  anyone,
	{entity.StatusQuoteProvided, entity.StatusQuoteRejected}:    anyone,
	{entity.StatusQuoteRejected, entity.StatusQuoteRequested}:   anyone,
	{entity.StatusRequestDraft, entity.StatusRequestPending}:    anyone,
	{entity.StatusRequestPending, entity.StatusNeedsScheduling}: staffOnly,
	{entity.StatusNeedsScheduling, entity.StatusScheduled}:      staffOnly,
	{entity.StatusScheduled, entity.StatusPostponed}:            staffOnly,
	{entity.StatusScheduled, entity.StatusNeedsScheduling}:      staffOnly,
	{entity.StatusPostponed, entity.StatusScheduled}:            staffOnly,
	{entity.StatusPostponed, entity.StatusNeedsScheduling}:      staffOnly,
	{entity.StatusScheduled, entity.StatusCollected}:            staffOnly,
	{entity.StatusCollected, entity.StatusReceived}:             staffOnly,
	{entity.StatusReceived, entity.StatusProcessing}:            staffOnly,
	{entity.StatusProcessing, entity.StatusComplete}:            staffOnly,
}

// Reachable reports whether to can follow from.
func Reachable(from, to entity.JobStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == entity.StatusCanceled {
		return cancellable(from)
	}
	_, ok := transitions[edge{from, to}]
	return ok
}

// Allowed reports whether actor may request a reachable transition.
func Allowed(actor entity.Actor, from, to entity.JobStatus) bool {
	if actor.IsStaff() {
		return true
	}
	if actor.Role != entity.RoleCustomer {
		return false
	}
	if to == entity.StatusCanceled {
		return from == entity.StatusQuoteDraft || from == entity.StatusRequestDraft
	}
	return transitions[edge{from, to}] == anyone
}

// NextStatuses lists the targets actor may request from status.
func NextStatuses(actor entity.Actor, status entity.JobStatus) []entity.JobStatus {
	var out []entity.JobStatus
	for _, to := range entity.AllStatuses {
		if Reachable(status, to) && Allowed(actor, status, to) {
			out = append(out, to)
		}
	}
	return out
}

// cancellable: nothing is in custody yet.
func cancellable(from entity.JobStatus) bool {
	g := from.Group()
	return g == entity.GroupQuotes || g == entity.GroupCollections
}

// needsItems marks transitions that require a non-empty ledger.
func needsItems(from, to entity.JobStatus) bool {
	switch {
	case from == entity.StatusQuoteProvided && (to == entity.StatusNeedsScheduling || to == entity.StatusQuoteRejected):
		return true
	case from == entity.StatusRequestDraft && to == entity.StatusRequestPending:
		return true
	default:
		return false
	}
}
