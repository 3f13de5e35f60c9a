package entity

import "github.com/google/uuid"

type Role string

const (
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// Actor is the caller as told by the identity collaborator. It is trusted as-is.
type Actor struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	CustomerID uuid.UUID `json:"customer_id,omitempty"`
}

func (a Actor) IsStaff() bool { return a.Role == RoleStaff }

// CanSee reports whether the actor may read the job at all.
func (a Actor) CanSee(j *Job) bool {
	if a.IsStaff() {
		return true
	}
	return a.Role == RoleCustomer && a.CustomerID != uuid.Nil && a.CustomerID == j.CustomerID
}
