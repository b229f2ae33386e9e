package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/folio-checkout/internal/domain/checkout"
	"github.com/xenking/folio-checkout/internal/domain/discount"
)

const (
	getPurchaseSQL = `SELECT p.id, COALESCE(p.user_id, ''), COALESCE(p.user_email, ''), p.status,
		p.final_price, p.currency, COALESCE(p.session_id, ''), p.created_at, p.updated_at,
		t.id, t.name, t.is_active
		FROM purchases p
		LEFT JOIN templates t ON t.id = p.template_id
		WHERE p.id = $1`

	getUsageByPurchaseSQL = `SELECT id, code_id, purchase_id, COALESCE(user_id, ''), status,
		discount_amount, expires_at, released_at, created_at
		FROM discount_usages WHERE purchase_id = $1`

	releaseUsageSQL = `UPDATE discount_usages SET status = 'RELEASED', released_at = $2
		WHERE id = $1 AND status = 'RESERVED'`

	decrementCodeUsesSQL = `UPDATE discount_codes SET current_uses = current_uses - 1, updated_at = now()
		WHERE id = $1 AND current_uses > 0`

	markProcessingSQL = `UPDATE purchases SET status = 'PROCESSING', session_id = $2, updated_at = $3
		WHERE id = $1 AND status = 'PENDING'`
)

// CheckoutOptions tunes settlement transactions.
type CheckoutOptions struct {
	// TxTimeout bounds a single transaction attempt.
	TxTimeout time.Duration
	// MaxRetries is the total number of attempts on serialization failure.
	MaxRetries int
}

var _ checkout.Store = (*CheckoutStore)(nil)

// CheckoutStore implements checkout.Store with serializable transactions.
type CheckoutStore struct {
	pool *pgxpool.Pool
	opts CheckoutOptions
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool, opts CheckoutOptions) *CheckoutStore {
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	return &CheckoutStore{pool: pool, opts: opts}
}

// InTx runs fn in a serializable transaction. Attempts that abort with a
// serialization failure or deadlock are retried with exponential backoff up
// to MaxRetries attempts in total; any other error is returned as is.
func (s *CheckoutStore) InTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	lg := zctx.From(ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := s.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if retryable(err) {
			lg.Debug("Retrying serialization failure", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxRetries-1)), ctx))
	if err != nil && retryable(err) {
		return errors.Wrapf(err, "gave up after %d attempts", attempt)
	}
	return err
}

func (s *CheckoutStore) attempt(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &checkoutTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	default:
		return false
	}
}

var _ checkout.Tx = (*checkoutTx)(nil)

type checkoutTx struct {
	tx pgx.Tx
}

func (t *checkoutTx) GetPurchase(ctx context.Context, id string) (*checkout.Purchase, error) {
	rows, err := t.tx.Query(ctx, getPurchaseSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading purchase %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPurchase)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("loading purchase %q: %w", id, err)
	}

	rows, err = t.tx.Query(ctx, getUsageByPurchaseSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading usage for purchase %q: %w", id, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUsage)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return &p, nil
	case err != nil:
		return nil, fmt.Errorf("loading usage for purchase %q: %w", id, err)
	}
	p.Usage = &u

	c, err := findCode(ctx, t.tx, getCodeByIDSQL, u.CodeID)
	if err != nil {
		return nil, err
	}
	p.Code = c
	return &p, nil
}

func (t *checkoutTx) ReleaseUsage(ctx context.Context, usageID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, releaseUsageSQL, usageID, at)
	if err != nil {
		return fmt.Errorf("releasing usage %q: %w", usageID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("usage %q is not reserved", usageID)
	}
	return nil
}

func (t *checkoutTx) DecrementCodeUses(ctx context.Context, codeID string) error {
	if _, err := t.tx.Exec(ctx, decrementCodeUsesSQL, codeID); err != nil {
		return fmt.Errorf("decrementing uses for code %q: %w", codeID, err)
	}
	return nil
}

func (t *checkoutTx) MarkProcessing(ctx context.Context, purchaseID, sessionID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, markProcessingSQL, purchaseID, sessionID, at)
	if err != nil {
		return fmt.Errorf("marking purchase %q processing: %w", purchaseID, err)
	}
	if tag.RowsAffected() == 0 {
		return checkout.ErrAlreadyProcessed
	}
	return nil
}

func (t *checkoutTx) AppendAudit(ctx context.Context, entry discount.AuditEntry) error {
	return insertAudit(ctx, t.tx, entry)
}

func scanPurchase(row pgx.CollectableRow) (checkout.Purchase, error) {
	var (
		p          checkout.Purchase
		status     string
		tplID      *string
		tplName    *string
		tplActive  *bool
		finalPrice decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.UserEmail, &status,
		&finalPrice, &p.Currency, &p.SessionID, &p.CreatedAt, &p.UpdatedAt,
		&tplID, &tplName, &tplActive,
	)
	p.Status = checkout.Status(status)
	p.FinalPrice = finalPrice
	if tplID != nil {
		p.Template = &checkout.Template{ID: *tplID}
		if tplName != nil {
			p.Template.Name = *tplName
		}
		if tplActive != nil {
			p.Template.IsActive = *tplActive
		}
	}
	return p, err
}

func scanUsage(row pgx.CollectableRow) (discount.Usage, error) {
	var (
		u      discount.Usage
		status string
	)
	err := row.Scan(
		&u.ID, &u.CodeID, &u.PurchaseID, &u.UserID, &status,
		&u.DiscountAmount, &u.ExpiresAt, &u.ReleasedAt, &u.CreatedAt,
	)
	u.Status = discount.UsageStatus(status)
	return u, err
}
