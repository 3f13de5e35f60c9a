package entity

import "github.com/shopspring/decimal"

// Category and SubCategory come from the reference data collaborator and are
// read-only here.
type Category struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	DefaultWeight decimal.Decimal `json:"default_weight"`
	EWCCode       string          `json:"ewc_code"`
	HazardCodes   []string        `json:"hazard_codes"`
}

type SubCategory struct {
	ID            int64           `json:"id"`
	CategoryID    int64           `json:"category_id"`
	Name          string          `json:"name"`
	DefaultWeight decimal.Decimal `json:"default_weight"`
}
