package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/folio-checkout/internal/domain/discount"
)

const codeColumns = `id, code, description, discount_type, discount_value,
	max_uses, current_uses, max_uses_per_user, valid_from, valid_until,
	min_purchase_amount, max_discount_amount, is_active, is_public,
	template_ids, excluded_template_ids, created_at, updated_at`

const (
	getCodeByCodeSQL = `SELECT ` + codeColumns + ` FROM discount_codes WHERE code = $1`
	getCodeByIDSQL   = `SELECT ` + codeColumns + ` FROM discount_codes WHERE id = $1`

	insertCodeSQL = `INSERT INTO discount_codes (` + codeColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	insertAuditSQL = `INSERT INTO discount_audit_logs
	(id, code_id, action, actor_id, actor_type, ip_address, user_agent, reason, created_at)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a code by its sanitized value.
// Returns discount.ErrCodeNotFound when no row matches.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Code, error) {
	return findCode(ctx, r.pool, getCodeByCodeSQL, code)
}

// List returns one page of codes matching f, newest first.
func (r *DiscountRepository) List(ctx context.Context, f discount.Filter) (*discount.Page, error) {
	where, args := listWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM discount_codes`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting discount codes: %w", err)
	}

	n := len(args)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	q := `SELECT ` + codeColumns + ` FROM discount_codes` + where +
		` ORDER BY created_at DESC, code LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing discount codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, scanCode)
	if err != nil {
		return nil, fmt.Errorf("listing discount codes: %w", err)
	}

	return &discount.Page{
		Codes: codes,
		Total: total,
		Page:  f.Page,
		Limit: f.Limit,
	}, nil
}

func listWhere(f discount.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Active != nil {
		conds = append(conds, "is_active = "+arg(*f.Active))
	}
	if f.Public != nil {
		conds = append(conds, "is_public = "+arg(*f.Public))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + escapeLike(s) + "%")
		conds = append(conds, "(code ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Create inserts c and its audit entry in one transaction.
// Returns discount.ErrCodeExists on a duplicate code.
func (r *DiscountRepository) Create(ctx context.Context, c *discount.Code, entry discount.AuditEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create code: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertCodeSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MaxUses, c.CurrentUses, c.MaxUsesPerUser, c.ValidFrom, c.ValidUntil,
		c.MinPurchaseAmount, c.MaxDiscountAmount, c.IsActive, c.IsPublic,
		nonNil(c.TemplateIDs), nonNil(c.ExcludedTemplateIDs), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return discount.ErrCodeExists
		}
		return fmt.Errorf("inserting discount code %q: %w", c.Code, err)
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create code: %w", err)
	}
	return nil
}

func insertAudit(ctx context.Context, q execer, e discount.AuditEntry) error {
	_, err := q.Exec(ctx, insertAuditSQL,
		e.ID, e.CodeID, string(e.Action), e.Actor.ID, string(e.Actor.Type),
		e.Actor.IP, e.Actor.UserAgent, e.Reason, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry for code %s: %w", e.CodeID, err)
	}
	return nil
}

func findCode(ctx context.Context, q pgxQuerier, sql string, arg string) (*discount.Code, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding discount code %q: %w", arg, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding discount code %q: %w", arg, err)
	}
	return &c, nil
}

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanCode(row pgx.CollectableRow) (discount.Code, error) {
	var (
		c            discount.Code
		discountType string
		maxUses      *int32
		maxPerUser   *int32
		currentUses  int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.DiscountValue,
		&maxUses, &currentUses, &maxPerUser, &c.ValidFrom, &c.ValidUntil,
		&c.MinPurchaseAmount, &c.MaxDiscountAmount, &c.IsActive, &c.IsPublic,
		&c.TemplateIDs, &c.ExcludedTemplateIDs, &c.CreatedAt, &c.UpdatedAt,
	)
	c.DiscountType = discount.Type(discountType)
	c.CurrentUses = int(currentUses)
	c.MaxUses = intPtr(maxUses)
	c.MaxUsesPerUser = intPtr(maxPerUser)
	return c, err
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
