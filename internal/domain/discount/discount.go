package discount

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage takes a percentage of the cart total.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixed takes a fixed monetary amount, capped at the cart total.
	TypeFixed Type = "FIXED"
)

// ParseType returns the Type named by s, or a validation error.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypePercentage, TypeFixed:
		return t, nil
	default:
		return "", apperr.New(apperr.KindValidation, "discountType must be PERCENTAGE or FIXED")
	}
}

// UsageStatus is the state of a reservation.
type UsageStatus string

const (
	UsageReserved  UsageStatus = "RESERVED"
	UsageConfirmed UsageStatus = "CONFIRMED"
	UsageReleased  UsageStatus = "RELEASED"
)

// Code is a promotional discount code.
type Code struct {
	ID                  string
	Code                string
	Description         string
	DiscountType        Type
	DiscountValue       decimal.Decimal
	MaxUses             *int
	CurrentUses         int
	MaxUsesPerUser      *int
	ValidFrom           *time.Time
	ValidUntil          *time.Time
	MinPurchaseAmount   *decimal.Decimal
	MaxDiscountAmount   *decimal.Decimal
	IsActive            bool
	IsPublic            bool
	TemplateIDs         []string
	ExcludedTemplateIDs []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Usage is one code's application to one purchase.
type Usage struct {
	ID             string
	CodeID         string
	PurchaseID     string
	UserID         string
	Status         UsageStatus
	DiscountAmount decimal.Decimal
	ExpiresAt      time.Time
	ReleasedAt     *time.Time
	CreatedAt      time.Time
}

// Expired reports whether a RESERVED usage has passed its deadline at now.
func (u *Usage) Expired(now time.Time) bool {
	return u.Status == UsageReserved && u.ExpiresAt.Before(now)
}

// ErrCodeNotFound is returned when no discount code matches.
var ErrCodeNotFound = apperr.New(apperr.KindNotFound, "Discount code not found")

// ErrCodeExists is returned when creating a code that already exists.
var ErrCodeExists = apperr.New(apperr.KindConflict, "Discount code already exists")

// Filter narrows the admin code listing.
type Filter struct {
	Active *bool
	Public *bool
	Search string
	Page   int
	Limit  int
}

// Page is one page of an admin listing.
type Page struct {
	Codes []Code
	Total int
	Page  int
	Limit int
}

// TotalPages rounds the page count up.
func (p Page) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Repository provides lookup, listing and creation of discount codes.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Code, error)
	List(ctx context.Context, f Filter) (*Page, error)
	// Create inserts c and the accompanying audit entry atomically.
	// It returns ErrCodeExists when the code is taken.
	Create(ctx context.Context, c *Code, entry AuditEntry) error
}
