package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
	"github.com/xenking/folio-checkout/internal/domain/discount"
)

// DefaultSessionTTL is how long a checkout session stays payable.
const DefaultSessionTTL = 30 * time.Minute

const instrumentationName = "github.com/xenking/folio-checkout/internal/domain/checkout"

// SettleRequest identifies the purchase to settle and who is settling it.
type SettleRequest struct {
	PurchaseID string
	UserID     string
	UserEmail  string
	IP         string
	UserAgent  string
}

// Session is the result of a successful settlement.
type Session struct {
	Purchase  *Purchase
	SessionID string
	ExpiresAt time.Time
}

// Service advances purchases from PENDING to PROCESSING.
type Service struct {
	store      Store
	now        func() time.Time
	sessionTTL time.Duration
	tracer     trace.Tracer
	outcomes   metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// NewService creates a settlement Service over store.
func NewService(store Store, tp trace.TracerProvider, mp metric.MeterProvider, opts ...Option) (*Service, error) {
	outcomes, err := mp.Meter(instrumentationName).Int64Counter("checkout.settlements",
		metric.WithDescription("Checkout settlement attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create settlements counter")
	}

	s := &Service{
		store:      store,
		now:        time.Now,
		sessionTTL: DefaultSessionTTL,
		tracer:     tp.Tracer(instrumentationName),
		outcomes:   outcomes,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Settle runs the checkout state machine for one purchase in a single
// serializable transaction.
//
// An expired reservation is released and its code's counter decremented;
// that work is committed and Settle then fails with ErrReservationExpired,
// leaving the purchase PENDING.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Settle",
		trace.WithAttributes(attribute.String("purchase.id", req.PurchaseID)),
	)
	defer span.End()

	lg := zctx.From(ctx).With(zap.String("purchase_id", req.PurchaseID))

	if req.PurchaseID == "" {
		return nil, apperr.New(apperr.KindValidation, "purchaseId is required")
	}

	var (
		result  *Session
		expired *discount.Usage
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// The closure may run again after a serialization failure.
		result, expired = nil, nil

		p, err := tx.GetPurchase(ctx, req.PurchaseID)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			return ErrAlreadyProcessed
		}
		if p.Template == nil || !p.Template.IsActive {
			return ErrTemplateUnavailable
		}

		now := s.now().UTC()
		var reserved *discount.Usage
		if u := p.Usage; u != nil && u.Status == discount.UsageReserved {
			if u.Expired(now) {
				if err := tx.ReleaseUsage(ctx, u.ID, now); err != nil {
					return errors.Wrap(err, "release usage")
				}
				if err := tx.DecrementCodeUses(ctx, u.CodeID); err != nil {
					return errors.Wrap(err, "decrement code uses")
				}
				expired = u
				return nil
			}
			reserved = u
		}

		sessionID := uuid.New().String()
		if err := tx.MarkProcessing(ctx, p.ID, sessionID, now); err != nil {
			return errors.Wrap(err, "mark processing")
		}
		p.Status = StatusProcessing
		p.SessionID = sessionID
		p.UpdatedAt = now

		if reserved != nil {
			entry := discount.AuditEntry{
				ID:     uuid.New().String(),
				CodeID: reserved.CodeID,
				Action: discount.AuditCheckoutInitiated,
				Actor:  actorFor(req),
				Reason: fmt.Sprintf("Checkout session %s started for purchase %s, final price %s %s",
					sessionID, p.ID, p.FinalPrice.StringFixed(2), p.Currency),
				CreatedAt: now,
			}
			if err := tx.AppendAudit(ctx, entry); err != nil {
				return errors.Wrap(err, "append audit entry")
			}
		}

		result = &Session{
			Purchase:  p,
			SessionID: sessionID,
			ExpiresAt: now.Add(s.sessionTTL),
		}
		return nil
	})

	switch {
	case err != nil:
		kind := apperr.KindOf(err)
		s.record(ctx, kind.String())
		if kind == apperr.KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, "settle failed")
			return nil, errors.Wrapf(err, "settle purchase %s", req.PurchaseID)
		}
		lg.Info("Checkout rejected", zap.Stringer("kind", kind), zap.Error(err))
		return nil, err
	case expired != nil:
		s.record(ctx, apperr.KindExpiredReservation.String())
		lg.Info("Released expired reservation",
			zap.String("usage_id", expired.ID),
			zap.String("code_id", expired.CodeID),
			zap.Time("expired_at", expired.ExpiresAt),
		)
		return nil, ErrReservationExpired
	}

	s.record(ctx, "processing")
	span.SetAttributes(attribute.String("checkout.session_id", result.SessionID))
	lg.Info("Checkout session started",
		zap.String("session_id", result.SessionID),
		zap.String("user_email", req.UserEmail),
		zap.Bool("discounted", result.Purchase.Usage != nil && result.Purchase.Usage.Status == discount.UsageReserved),
	)
	return result, nil
}

func (s *Service) record(ctx context.Context, outcome string) {
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func actorFor(req SettleRequest) discount.Actor {
	a := discount.Actor{
		ID:        req.UserID,
		Type:      discount.ActorUser,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	}
	if req.UserID == "" {
		a.Type = discount.ActorGuest
	}
	return a
}
