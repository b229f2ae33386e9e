package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reason explains why a code cannot be applied.
type Reason string

const (
	ReasonInactive          Reason = "INACTIVE"
	ReasonPrivate           Reason = "PRIVATE"
	ReasonNotYetActive      Reason = "NOT_YET_ACTIVE"
	ReasonExpired           Reason = "EXPIRED"
	ReasonFullyUsed         Reason = "FULLY_USED"
	ReasonMinPurchaseNotMet Reason = "MIN_PURCHASE_NOT_MET"
	ReasonNotFound          Reason = "NOT_FOUND"
)

// activationDateLayout formats validFrom in user-facing messages.
const activationDateLayout = "January 2, 2006"

// Result is the outcome of validating a code.
type Result struct {
	Valid   bool
	Reason  Reason
	Message string
}

func invalid(r Reason, msg string) Result {
	return Result{Reason: r, Message: msg}
}

// Validate decides whether c is usable at now. The first failing gate wins:
// inactive, private, not yet active, expired, fully used.
// It has no side effects.
func Validate(c *Code, now time.Time) Result {
	if !c.IsActive {
		return invalid(ReasonInactive, "This discount code is no longer active")
	}
	if !c.IsPublic {
		return invalid(ReasonPrivate, "This discount code is not available")
	}
	if c.ValidFrom != nil && c.ValidFrom.After(now) {
		return invalid(ReasonNotYetActive,
			"This discount code will be active from "+c.ValidFrom.UTC().Format(activationDateLayout))
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return invalid(ReasonExpired, "This discount code has expired")
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return invalid(ReasonFullyUsed, "This discount code has reached its usage limit")
	}
	return Result{Valid: true}
}

// CheckMinPurchase reports whether cartTotal satisfies c's minimum purchase.
// It runs after Validate so that gate precedence is unaffected.
func CheckMinPurchase(c *Code, cartTotal decimal.Decimal) Result {
	if c.MinPurchaseAmount != nil && cartTotal.LessThan(*c.MinPurchaseAmount) {
		return invalid(ReasonMinPurchaseNotMet,
			"A minimum purchase of "+c.MinPurchaseAmount.StringFixed(2)+" is required for this code")
	}
	return Result{Valid: true}
}
