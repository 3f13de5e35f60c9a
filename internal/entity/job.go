package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type JobKind string

const (
	KindQuote      JobKind = "quote"
	KindCollection JobKind = "collection"
)

// CollectionSite holds where and how the pickup happens.
type CollectionSite struct {
	Address      string `json:"address"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	Instructions string `json:"instructions"`
}

// Signatures are written only by the Collected and Received at Facility
// transitions. Image fields are file store references.
type Signatures struct {
	CustomerImage string `json:"customer_image,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	DriverImage   string `json:"driver_image,omitempty"`
	DriverName    string `json:"driver_name,omitempty"`
	StaffImage    string `json:"staff_image,omitempty"`
	StaffName     string `json:"staff_name,omitempty"`
}

type Job struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Status      JobStatus `json:"status"`
	CustomerID  uuid.UUID `json:"customer_id"`
	CollectorID string    `json:"collector_id,omitempty"`

	Site         CollectionSite `json:"site"`
	VehicleReg   string         `json:"vehicle_reg,omitempty"`
	DriverName   string         `json:"driver_name,omitempty"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`

	QuoteAmount     decimal.NullDecimal `json:"quote_amount"`
	QuoteNarrative  string              `json:"quote_narrative,omitempty"`
	RejectionReason string              `json:"rejection_reason,omitempty"`

	Signatures Signatures `json:"signatures"`

	CollectedAt *time.Time `json:"collected_at,omitempty"`
	ReceivedAt  *time.Time `json:"received_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Editable reports whether anything on the job may still change.
func (j *Job) Editable() bool {
	return !j.Status.Terminal()
}

// JobCodePrefix returns "J<YY>" for the given year.
func JobCodePrefix(year int) string {
	return fmt.Sprintf("J%02d", year%100)
}

// JobFilter narrows job listings. Zero fields do not filter.
type JobFilter struct {
	Status     JobStatus
	Group      StatusGroup
	CustomerID uuid.UUID
}
