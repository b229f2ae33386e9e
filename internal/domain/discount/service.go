package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// CheckResult is the outcome of a public validation, with the stored code
// when one was found and the computed amounts when a cart total was given.
type CheckResult struct {
	Result
	Code    *Code
	Amounts *Amounts
}

// CreateRequest holds the admin-supplied fields for a new code.
type CreateRequest struct {
	Code                string
	Description         string
	DiscountType        string
	DiscountValue       decimal.Decimal
	MaxUses             *int
	MaxUsesPerUser      *int
	ValidFrom           *time.Time
	ValidUntil          *time.Time
	MinPurchaseAmount   *decimal.Decimal
	MaxDiscountAmount   *decimal.Decimal
	IsActive            *bool
	IsPublic            *bool
	TemplateIDs         []string
	ExcludedTemplateIDs []string
}

// Service implements the public validation path and admin CRUD on codes.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Check sanitizes raw, loads the code and runs the public gates. When
// cartTotal is non-nil it also enforces the minimum purchase and computes the
// discount. A missing code yields a NOT_FOUND result together with
// ErrCodeNotFound.
func (s *Service) Check(ctx context.Context, raw string, cartTotal *decimal.Decimal) (*CheckResult, error) {
	code, err := SanitizeCode(raw)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return &CheckResult{Result: invalid(ReasonNotFound, ErrCodeNotFound.Message)}, ErrCodeNotFound
		}
		return nil, errors.Wrap(err, "lookup discount code")
	}

	res := &CheckResult{Result: Validate(c, s.now()), Code: c}
	if !res.Valid || cartTotal == nil {
		return res, nil
	}

	if mp := CheckMinPurchase(c, *cartTotal); !mp.Valid {
		res.Result = mp
		return res, nil
	}
	amounts := Calculate(InputFor(c, *cartTotal))
	res.Amounts = &amounts
	return res, nil
}

// List returns a page of codes. Page defaults to 1 and the limit is clamped
// to [1, 100] with a default of 20.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultPageLimit
	case f.Limit > maxPageLimit:
		f.Limit = maxPageLimit
	}

	p, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list discount codes")
	}
	return p, nil
}

// Create validates req, persists a new code and writes a CREATED audit entry
// in the same transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor Actor) (*Code, error) {
	return s.create(ctx, req, actor, AuditCreated, "Discount code created")
}

// Import is Create for bulk loads; it records an IMPORTED audit entry.
func (s *Service) Import(ctx context.Context, req CreateRequest, actor Actor, source string) (*Code, error) {
	return s.create(ctx, req, actor, AuditImported, "Discount code imported from "+source)
}

func (s *Service) create(ctx context.Context, req CreateRequest, actor Actor, action AuditAction, reason string) (*Code, error) {
	c, err := s.build(req)
	if err != nil {
		return nil, err
	}

	entry := AuditEntry{
		ID:        uuid.New().String(),
		CodeID:    c.ID,
		Action:    action,
		Actor:     actor,
		Reason:    reason,
		CreatedAt: c.CreatedAt,
	}
	if err := s.repo.Create(ctx, c, entry); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, err
		}
		return nil, errors.Wrapf(err, "create discount code %s", c.Code)
	}
	return c, nil
}

func (s *Service) build(req CreateRequest) (*Code, error) {
	code, err := SanitizeCode(req.Code)
	if err != nil {
		return nil, err
	}
	t, err := ParseType(req.DiscountType)
	if err != nil {
		return nil, err
	}
	if err := CheckValue(t, req.DiscountValue); err != nil {
		return nil, err
	}
	for _, n := range []struct {
		field string
		v     *int
	}{
		{"maxUses", req.MaxUses},
		{"maxUsesPerUser", req.MaxUsesPerUser},
	} {
		if n.v != nil && (*n.v < 1 || *n.v > MaxCount) {
			return nil, apperr.New(apperr.KindValidation, n.field+" must be between 1 and 2147483647")
		}
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && !req.ValidUntil.After(*req.ValidFrom) {
		return nil, apperr.New(apperr.KindValidation, "validUntil must be after validFrom")
	}
	if v := req.MinPurchaseAmount; v != nil {
		if err := CheckAmount("minPurchaseAmount", *v); err != nil {
			return nil, err
		}
		if v.IsNegative() {
			return nil, apperr.New(apperr.KindValidation, "minPurchaseAmount must not be negative")
		}
	}
	if v := req.MaxDiscountAmount; v != nil {
		if err := CheckAmount("maxDiscountAmount", *v); err != nil {
			return nil, err
		}
		if !v.IsPositive() {
			return nil, apperr.New(apperr.KindValidation, "maxDiscountAmount must be greater than 0")
		}
	}

	now := s.now().UTC()
	return &Code{
		ID:                  uuid.New().String(),
		Code:                code,
		Description:         req.Description,
		DiscountType:        t,
		DiscountValue:       req.DiscountValue,
		MaxUses:             req.MaxUses,
		MaxUsesPerUser:      req.MaxUsesPerUser,
		ValidFrom:           req.ValidFrom,
		ValidUntil:          req.ValidUntil,
		MinPurchaseAmount:   req.MinPurchaseAmount,
		MaxDiscountAmount:   req.MaxDiscountAmount,
		IsActive:            boolOr(req.IsActive, true),
		IsPublic:            boolOr(req.IsPublic, true),
		TemplateIDs:         req.TemplateIDs,
		ExcludedTemplateIDs: req.ExcludedTemplateIDs,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
