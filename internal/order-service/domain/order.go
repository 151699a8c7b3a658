package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPaymentMethod is used when a purchase request omits one.
const DefaultPaymentMethod = "CARD"

type Order struct {
	ID              string
	UserID          string
	Status          OrderStatus
	PaymentMethod   string
	ShippingAddress string
	// Total is derived from Lines by the store; it is never taken from input.
	Total     decimal.Decimal
	CreatedAt time.Time
	Lines     []OrderLine
}

// OrderLine is one (catalog item, quantity) entry. UnitPrice is a copy of the
// catalog price at purchase time and does not follow later catalog changes.
type OrderLine struct {
	ID        string
	OrderID   string
	ItemID    string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	LicenseID string
}

// Total returns subtotal + tax.
func (l OrderLine) Total() decimal.Decimal {
	return l.Subtotal.Add(l.Tax)
}

// SumLineTotals is the authoritative order total for a set of lines.
func SumLineTotals(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

type OrderStatus string

const (
	StatusDraft  OrderStatus = "DRAFT"
	StatusPlaced OrderStatus = "PLACED"
)

// LineRequest is a requested purchase entry before pricing.
type LineRequest struct {
	ItemID   string
	Quantity int
}

// CreateOrder is the purchase request accepted by the orchestration entrypoint.
type CreateOrder struct {
	UserID          string
	PaymentMethod   string
	ShippingAddress string
	Lines           []LineRequest
}
