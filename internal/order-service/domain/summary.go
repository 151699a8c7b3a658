package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the display view of an order. Pointer fields are nil when the
// collaborator that owns them could not be reached or returned garbage.
type Summary struct {
	ID              string
	Status          OrderStatus
	Total           decimal.Decimal
	CreatedAt       time.Time
	PaymentMethod   string
	ShippingAddress string
	User            *User
	Lines           []LineSummary
}

type LineSummary struct {
	ID        string
	ItemID    string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	LineTotal decimal.Decimal

	ItemName   *string
	ItemStatus *string

	AverageRating *decimal.Decimal
	RatingCount   *int

	LicenseID        *string
	LicenseKey       *string
	LicenseExpiresAt *time.Time
	LicenseState     *string
}

// User is the identity profile as seen by this service.
type User struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Role      string
	Status    string
	CreatedAt time.Time
}

// CatalogItem is read from the catalog; this service owns none of it.
type CatalogItem struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Stock  int
	Status string
	Active bool
}

type LicenseState string

const (
	LicenseFree  LicenseState = "free"
	LicenseBound LicenseState = "bound"
)

type License struct {
	ID        string
	Key       string
	ExpiresAt time.Time
	State     LicenseState
	ItemID    string
}

type Rating struct {
	Average decimal.Decimal
	Count   int
}

// LibraryEntry records that a user owns a catalog item.
type LibraryEntry struct {
	ID       string
	UserID   string
	ItemID   string
	Metadata EntryMetadata
}

type EntryMetadata struct {
	Name  string
	Price decimal.Decimal
}
