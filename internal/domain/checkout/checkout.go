package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
	"github.com/xenking/folio-checkout/internal/domain/discount"
)

// Status is the lifecycle state of a purchase.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// Template is the purchasable portfolio template.
type Template struct {
	ID       string
	Name     string
	IsActive bool
}

// Purchase is a pending transaction for a template.
type Purchase struct {
	ID         string
	UserID     string
	UserEmail  string
	Status     Status
	FinalPrice decimal.Decimal
	Currency   string
	SessionID  string
	Template   *Template
	// Usage is the single discount reservation attached to the purchase, if any.
	Usage     *discount.Usage
	Code      *discount.Code
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrPurchaseNotFound is returned when no purchase matches the id.
	ErrPurchaseNotFound = apperr.New(apperr.KindNotFound, "Purchase not found")
	// ErrAlreadyProcessed is returned when the purchase is not PENDING.
	ErrAlreadyProcessed = apperr.New(apperr.KindInvalidState, "Purchase already processed or in invalid state")
	// ErrTemplateUnavailable is returned when the template is missing or inactive.
	ErrTemplateUnavailable = apperr.New(apperr.KindUnavailable, "Template is no longer available")
	// ErrReservationExpired is returned after an expired reservation was released.
	ErrReservationExpired = apperr.New(apperr.KindExpiredReservation,
		"Discount reservation has expired, please reapply the code")
)

// Tx is the set of reads and writes settlement performs inside one
// serializable transaction.
type Tx interface {
	// GetPurchase loads a purchase with its template, usage and code.
	// It returns ErrPurchaseNotFound when no row matches.
	GetPurchase(ctx context.Context, id string) (*Purchase, error)
	// ReleaseUsage moves a RESERVED usage to RELEASED at the given time.
	ReleaseUsage(ctx context.Context, usageID string, at time.Time) error
	// DecrementCodeUses lowers the code's usage counter by one, never below zero.
	DecrementCodeUses(ctx context.Context, codeID string) error
	// MarkProcessing moves a PENDING purchase to PROCESSING with the session id.
	MarkProcessing(ctx context.Context, purchaseID, sessionID string, at time.Time) error
	// AppendAudit writes an audit entry.
	AppendAudit(ctx context.Context, entry discount.AuditEntry) error
}

// Store runs settlement work atomically.
type Store interface {
	// InTx runs fn in a single serializable transaction and commits when fn
	// returns nil. Any error rolls the whole transaction back. fn may be
	// invoked more than once when the database reports a serialization failure.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
