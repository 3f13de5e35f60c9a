package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"collection-service/internal/entity"
)

// Gate checks human-supplied proof before a gated transition writes anything.
// It holds no state besides the validator and the clock.
type Gate struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewGate() *Gate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Gate{
		validate: v,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gate) SetClock(now func() time.Time) { g.now = now }

// ValidateCollectionProof requires the customer step, then the driver step.
// The first missing field is reported.
func (g *Gate) ValidateCollectionProof(p entity.CollectionProof) error {
	p.CustomerSignature = strings.TrimSpace(p.CustomerSignature)
	p.CustomerName = strings.TrimSpace(p.CustomerName)
	p.DriverSignature = strings.TrimSpace(p.DriverSignature)
	p.DriverName = strings.TrimSpace(p.DriverName)
	p.VehicleRegistration = strings.TrimSpace(p.VehicleRegistration)
	return g.check(p)
}

// ValidateReceiptProof returns the receipt time to record: the supplied one,
// or now. It may not be in the future nor before collectedAt.
func (g *Gate) ValidateReceiptProof(p entity.ReceiptProof, collectedAt *time.Time) (time.Time, error) {
	p.StaffSignature = strings.TrimSpace(p.StaffSignature)
	p.StaffName = strings.TrimSpace(p.StaffName)
	if err := g.check(p); err != nil {
		return time.Time{}, err
	}

	now := g.now()
	at := now
	if p.ReceivedAt != nil {
		at = p.ReceivedAt.UTC()
	}
	if at.After(now) {
		return time.Time{}, entity.NewFieldError(entity.ErrIncompleteProof, "received_at", "is in the future")
	}
	if collectedAt != nil && at.Before(*collectedAt) {
		return time.Time{}, entity.NewFieldError(entity.ErrIncompleteProof, "received_at", "is before collection")
	}
	return at, nil
}

func (g *Gate) check(proof any) error {
	err := g.validate.Struct(proof)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate proof: %w", err)
	}
	first := verrs[0]
	return entity.NewFieldError(entity.ErrIncompleteProof, first.Field(), first.Tag())
}
