package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	DocWasteTransferNote      DocumentKind = "waste_transfer_note"
	DocDestructionCertificate DocumentKind = "destruction_certificate"
)

func (k DocumentKind) Valid() bool {
	return k == DocWasteTransferNote || k == DocDestructionCertificate
}

// DocumentRequest is what travels on the document queue.
type DocumentRequest struct {
	ID          uuid.UUID    `json:"id"`
	JobID       uuid.UUID    `json:"job_id"`
	Kind        DocumentKind `json:"kind"`
	RequestedBy string       `json:"requested_by"`
	RequestedAt time.Time    `json:"requested_at"`
}

// CategoryWeight is one row of the hazardous waste note.
type CategoryWeight struct {
	CategoryID      int64           `json:"category_id"`
	CategoryName    string          `json:"category_name"`
	SubCategoryID   *int64          `json:"sub_category_id,omitempty"`
	SubCategoryName string          `json:"sub_category_name,omitempty"`
	EWCCode         string          `json:"ewc_code"`
	HazardCodes     []string        `json:"hazard_codes"`
	Quantity        int             `json:"quantity"`
	Weight          decimal.Decimal `json:"weight"`
}

type ErasureLine struct {
	ItemNumber    string     `json:"item_number"`
	AssetTag      string     `json:"asset_tag"`
	SerialNumber  string     `json:"serial_number"`
	ErasureMethod string     `json:"erasure_method"`
	ErasedAt      *time.Time `json:"erased_at,omitempty"`
}

// ErasureGroup lists erasure-required items of one category for the
// data-destruction certificate.
type ErasureGroup struct {
	CategoryID   int64         `json:"category_id"`
	CategoryName string        `json:"category_name"`
	Items        []ErasureLine `json:"items"`
}

// DocumentSnapshot is the read-only view handed to the renderer.
type DocumentSnapshot struct {
	Kind    DocumentKind     `json:"kind"`
	Job     Job              `json:"job"`
	Items   []JobItem        `json:"items"`
	Weights []CategoryWeight `json:"weights,omitempty"`
	Erasure []ErasureGroup   `json:"erasure,omitempty"`
}
