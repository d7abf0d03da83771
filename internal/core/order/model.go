// Package order places and tracks customer orders against the stock on hand.
// An Order keeps its own copy of the part as it was when the order was taken,
// so later price or description edits never rewrite history.
package order

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/core/stock"
)

type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Shipped    Status = "shipped"
	Delivered  Status = "delivered"
	Cancelled  Status = "cancelled"
)

func ParseStatus(v string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(v))); s {
	case Pending, Processing, Shipped, Delivered, Cancelled:
		return s, nil
	default:
		return "", core.NewValidationError("status", fmt.Sprintf("unrecognized status %q", v))
	}
}

// forward lists the single step each status may advance to. Cancellation is
// handled separately because it also returns stock.
var forward = map[Status]Status{
	Pending:    Processing,
	Processing: Shipped,
	Shipped:    Delivered,
}

func (s Status) CanTransitionTo(next Status) bool {
	if next == Cancelled {
		return s.Cancellable()
	}
	return forward[s] == next
}

func (s Status) Cancellable() bool {
	return s != Delivered && s != Cancelled
}

// Snapshot is a value object. The part as it was at order time.
type Snapshot struct {
	Name        string          `json:"name"`
	PartNumber  string          `json:"partNumber,omitempty"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

func NewSnapshot(rec stock.Record) Snapshot {
	return Snapshot{
		Name:        rec.CompanyName,
		PartNumber:  rec.PartNumber,
		Category:    string(rec.Category),
		Price:       rec.Price,
		Description: rec.Description,
	}
}

type CustomerDetails struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Order is an entity.
type Order struct {
	ID              int64           `json:"id"`
	RequestID       string          `json:"requestId,omitempty"`
	StockID         int64           `json:"stockId,omitempty"`
	ProductSnapshot Snapshot        `json:"productSnapshot"`
	QuantityOrdered int64           `json:"quantityOrdered"`
	OrderTotal      decimal.Decimal `json:"orderTotal"`
	OrderDate       time.Time       `json:"orderDate"`
	CustomerDetails CustomerDetails `json:"customerDetails"`
	Status          Status          `json:"status"`
}

func Total(price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity))
}

// PlaceOrderRequest is a value object. RequestID is an optional idempotency
// key; repeating a request with the same key returns the first order.
type PlaceOrderRequest struct {
	ProductID       int64           `json:"productId"`
	Quantity        int64           `json:"quantity"`
	CustomerDetails CustomerDetails `json:"customerDetails"`
	RequestID       string          `json:"requestId,omitempty"`
}

var phonePattern = regexp.MustCompile(`^\d{10}$`)

func (r PlaceOrderRequest) Validate() error {
	if r.ProductID < 1 {
		return core.NewValidationError("productId", "is required")
	}
	if r.Quantity < 1 {
		return core.NewValidationError("quantity", "must be greater than zero")
	}
	if strings.TrimSpace(r.CustomerDetails.Name) == "" {
		return core.NewValidationError("customerDetails.name", "is required")
	}
	return nil
}

// ValidateStorefront applies the stricter checks used by the customer facing
// order form.
func (r PlaceOrderRequest) ValidateStorefront() error {
	if err := r.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.CustomerDetails.Address) == "" {
		return core.NewValidationError("customerDetails.address", "is required")
	}
	if !phonePattern.MatchString(r.CustomerDetails.Phone) {
		return core.NewValidationError("customerDetails.phone", "must be 10 digits")
	}
	return nil
}
