package entity

import "time"

// CollectionProof is captured at the kerb: customer step first, then driver.
// Field order is the order the gate reports missing fields in.
type CollectionProof struct {
	CustomerSignature   string `json:"customer_signature" validate:"required"`
	CustomerName        string `json:"customer_name" validate:"required"`
	ItemsConfirmed      bool   `json:"items_confirmed" validate:"required"`
	DriverSignature     string `json:"driver_signature" validate:"required"`
	DriverName          string `json:"driver_name" validate:"required"`
	VehicleRegistration string `json:"vehicle_registration" validate:"required"`
	AllItemsCollected   bool   `json:"all_items_collected" validate:"required"`
}

// ReceiptProof is captured when the load arrives at the facility.
// A nil ReceivedAt means "now".
type ReceiptProof struct {
	StaffSignature   string     `json:"staff_signature" validate:"required"`
	StaffName        string     `json:"staff_name" validate:"required"`
	ReceivedAt       *time.Time `json:"received_at,omitempty"`
	AllItemsReceived bool       `json:"all_items_received" validate:"required"`
}

type SignatureRole string

const (
	SignatureCustomer SignatureRole = "customer"
	SignatureDriver   SignatureRole = "driver"
	SignatureStaff    SignatureRole = "staff"
)

func (r SignatureRole) Valid() bool {
	return r == SignatureCustomer || r == SignatureDriver || r == SignatureStaff
}
