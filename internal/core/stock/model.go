// Package stock tracks the spare parts on hand. A Record is one SKU as it was
// last imported or adjusted, with its quantity and price.
package stock

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sksmith/go-spares/internal/core"
)

const DateLayout = "2006-01-02"

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Category groups parts for the storefront filters and the category report.
type Category string

const (
	Engine       Category = "Engine"
	Brakes       Category = "Brakes"
	Transmission Category = "Transmission"
	Suspension   Category = "Suspension"
	Electrical   Category = "Electrical"
	Body         Category = "Body"
	Interior     Category = "Interior"
	Other        Category = "Other"
	None         Category = ""
)

func ParseCategory(v string) (Category, error) {
	switch c := Category(v); c {
	case Engine, Brakes, Transmission, Suspension, Electrical, Body, Interior, Other, None:
		return c, nil
	default:
		return None, core.NewValidationError("category", fmt.Sprintf("unrecognized category %q", v))
	}
}

// Record is an entity. TotalCost is derived and recomputed on every write.
type Record struct {
	ID          int64           `json:"id"`
	Date        string          `json:"date"`
	Price       decimal.Decimal `json:"price"`
	Spares      int64           `json:"spares"`
	CompanyName string          `json:"companyName"`
	PartNumber  string          `json:"partNumber,omitempty"`
	Category    Category        `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	TotalCost   decimal.Decimal `json:"totalCost"`
}

// Normalize recomputes TotalCost from Price and Spares, discarding whatever
// the caller supplied.
func (r *Record) Normalize() {
	r.TotalCost = r.Price.Mul(decimal.NewFromInt(r.Spares))
}

// PriceScale matches the precision of the price column.
const PriceScale = 2

func (r Record) Validate() error {
	if r.ID < 1 {
		return core.NewValidationError("id", "is required")
	}
	if r.Date == "" {
		return core.NewValidationError("date", "is required")
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return core.NewValidationError("date", "must be formatted as YYYY-MM-DD")
	}
	if r.CompanyName == "" {
		return core.NewValidationError("companyName", "is required")
	}
	if r.Price.IsNegative() {
		return core.NewValidationError("price", "must not be negative")
	}
	if !r.Price.Equal(r.Price.Round(PriceScale)) {
		return core.NewValidationError("price", "must not have more than 2 decimal places")
	}
	if r.Spares < 0 {
		return core.NewValidationError("spares", "must not be negative")
	}
	if _, err := ParseCategory(string(r.Category)); err != nil {
		return err
	}
	return nil
}

// ValidateEntries checks a bulk import. The index of the first bad entry is
// part of the message so the admin screen can point at the row.
func ValidateEntries(records []Record) error {
	seen := make(map[int64]int, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return core.NewValidationError("", fmt.Sprintf("entry at index %d is invalid: %s", i, err.Error()))
		}
		if j, ok := seen[r.ID]; ok {
			return core.NewValidationError("", fmt.Sprintf("entry at index %d duplicates the id of entry %d", i, j))
		}
		seen[r.ID] = i
	}
	return nil
}
