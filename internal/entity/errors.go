package entity

import "errors"

var (
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrDuplicateItemNumber = errors.New("duplicate item number")
	ErrInvalidItemNumber   = errors.New("invalid item number")
	ErrJobNotEditable      = errors.New("job not editable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrIncompleteProof     = errors.New("incomplete proof")
	ErrForbidden           = errors.New("forbidden")

	// ErrValidation covers malformed input outside the ledger/gate taxonomy.
	ErrValidation = errors.New("validation failed")
)

// FieldError carries the failing field alongside one of the sentinel kinds.
type FieldError struct {
	Kind   error
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	msg := e.Kind.Error()
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *FieldError) Unwrap() error { return e.Kind }

func NewFieldError(kind error, field, reason string) *FieldError {
	return &FieldError{Kind: kind, Field: field, Reason: reason}
}

// FieldOf returns the field named by err, if any.
func FieldOf(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}
