package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionDetails are captured while an item is scheduled or collected.
type CollectionDetails struct {
	Make            string `json:"make,omitempty"`
	Model           string `json:"model,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	AssetTag        string `json:"asset_tag,omitempty"`
	ErasureRequired string `json:"erasure_required,omitempty"` // Yes | No | Unknown
	Notes           string `json:"notes,omitempty"`
}

// ProcessingDetails are captured at the facility.
type ProcessingDetails struct {
	Make          string              `json:"make,omitempty"`
	Model         string              `json:"model,omitempty"`
	SerialNumber  string              `json:"serial_number,omitempty"`
	Weight        decimal.NullDecimal `json:"weight"`
	Specification string              `json:"specification,omitempty"`
	ErasureMethod string              `json:"erasure_method,omitempty"`
	ErasedAt      *time.Time          `json:"erased_at,omitempty"`
	DataStatus    string              `json:"data_status,omitempty"`
	Outcome       string              `json:"outcome,omitempty"`
}

const ErasureYes = "Yes"

// JobItem is one tracked unit, or an unexpanded batch when Quantity > 1.
// ID 0 means the item has not been persisted yet.
type JobItem struct {
	ID            int64           `json:"id"`
	JobID         uuid.UUID       `json:"job_id"`
	ItemNumber    string          `json:"item_number"`
	Quantity      int             `json:"quantity"`
	Added         Stage           `json:"added"`
	CategoryID    int64           `json:"category_id,omitempty"`
	SubCategoryID *int64          `json:"sub_category_id,omitempty"`
	DefaultWeight decimal.Decimal `json:"default_weight"`

	Collection *CollectionDetails `json:"collection,omitempty"`
	Processing *ProcessingDetails `json:"processing,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (it *JobItem) Deleted() bool { return it.DeletedAt != nil }

// SameClassification reports whether category and sub-category match.
func (it JobItem) SameClassification(o JobItem) bool {
	return it.CategoryID == o.CategoryID && equalIDPtr(it.SubCategoryID, o.SubCategoryID)
}

// Equal compares the user-editable content of two items. Timestamps are ignored.
func (it JobItem) Equal(o JobItem) bool {
	return it.ID == o.ID &&
		it.JobID == o.JobID &&
		it.ItemNumber == o.ItemNumber &&
		it.Quantity == o.Quantity &&
		it.Added == o.Added &&
		it.SameClassification(o) &&
		it.DefaultWeight.Equal(o.DefaultWeight) &&
		equalCollection(it.Collection, o.Collection) &&
		equalProcessing(it.Processing, o.Processing)
}

// CollectionEqual and ProcessingEqual tell which stage a change touched.
func (it JobItem) CollectionEqual(o JobItem) bool {
	return it.ItemNumber == o.ItemNumber &&
		it.Quantity == o.Quantity &&
		it.SameClassification(o) &&
		equalCollection(it.Collection, o.Collection)
}

func (it JobItem) ProcessingEqual(o JobItem) bool {
	return equalProcessing(it.Processing, o.Processing)
}

func (it JobItem) Clone() JobItem {
	c := it
	if it.SubCategoryID != nil {
		v := *it.SubCategoryID
		c.SubCategoryID = &v
	}
	if it.Collection != nil {
		v := *it.Collection
		c.Collection = &v
	}
	if it.Processing != nil {
		v := *it.Processing
		if it.Processing.ErasedAt != nil {
			t := *it.Processing.ErasedAt
			v.ErasedAt = &t
		}
		c.Processing = &v
	}
	if it.DeletedAt != nil {
		t := *it.DeletedAt
		c.DeletedAt = &t
	}
	return c
}

func equalIDPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalCollection(a, b *CollectionDetails) bool {
	if a == nil {
		a = &CollectionDetails{}
	}
	if b == nil {
		b = &CollectionDetails{}
	}
	return *a == *b
}

func equalProcessing(a, b *ProcessingDetails) bool {
	if a == nil {
		a = &ProcessingDetails{}
	}
	if b == nil {
		b = &ProcessingDetails{}
	}
	if a.Weight.Valid != b.Weight.Valid || (a.Weight.Valid && !a.Weight.Decimal.Equal(b.Weight.Decimal)) {
		return false
	}
	if (a.ErasedAt == nil) != (b.ErasedAt == nil) || (a.ErasedAt != nil && !a.ErasedAt.Equal(*b.ErasedAt)) {
		return false
	}
	return a.Make == b.Make &&
		a.Model == b.Model &&
		a.SerialNumber == b.SerialNumber &&
		a.Specification == b.Specification &&
		a.ErasureMethod == b.ErasureMethod &&
		a.DataStatus == b.DataStatus &&
		a.Outcome == b.Outcome
}

var itemNumberRe = regexp.MustCompile(`^(J\d{5,})-(\d{2,})$`)

// FormatItemNumber renders <jobCode>-<NN>.
func FormatItemNumber(jobCode string, n int) string {
	return fmt.Sprintf("%s-%02d", jobCode, n)
}

// ParseItemNumber splits an item number and checks it belongs to jobCode.
func ParseItemNumber(jobCode, itemNumber string) (int, error) {
	m := itemNumberRe.FindStringSubmatch(itemNumber)
	if m == nil || m[1] != jobCode {
		return 0, NewFieldError(ErrInvalidItemNumber, "item_number", fmt.Sprintf("%q does not match %s-NN", itemNumber, jobCode))
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n < 1 {
		return 0, NewFieldError(ErrInvalidItemNumber, "item_number", fmt.Sprintf("%q has no sequence", itemNumber))
	}
	return n, nil
}

// CompareItemNumbers orders item numbers by their numeric suffix so that
// J25010-100 sorts after J25010-99.
func CompareItemNumbers(a, b string) int {
	ai, aok := itemSuffix(a)
	bi, bok := itemSuffix(b)
	if aok && bok && ai != bi {
		if ai < bi {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func itemSuffix(s string) (int, bool) {
	i := strings.LastIndexByte(s, '-')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[i+1:])
	return n, err == nil
}
