package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/folio-checkout/internal/storage/postgres"
)

type template struct {
	id       string
	name     string
	price    string
	isActive bool
}

type code struct {
	id          string
	code        string
	description string
	kind        string
	value       string
	maxUses     *int
	currentUses int
	minPurchase *string
	maxDiscount *string
	validFrom   *time.Time
	validUntil  *time.Time
	isActive    bool
	isPublic    bool
}

type purchase struct {
	id         string
	templateID string
	userID     string
	email      string
	finalPrice string
	// usage, when set, is a reservation on the given code that expires
	// after the offset (negative means already expired).
	usage *usage
}

type usage struct {
	id       string
	codeID   string
	amount   string
	expireIn time.Duration
}

func ptr[T any](v T) *T { return &v }

func demoData(reservationTTL time.Duration, now time.Time) ([]template, []code, []purchase) {
	templates := []template{
		{id: "tpl-resume-classic", name: "Classic Resume", price: "49.00", isActive: true},
		{id: "tpl-portfolio-pro", name: "Portfolio Pro", price: "79.00", isActive: true},
		{id: "tpl-retired", name: "Retired Layout", price: "19.00", isActive: false},
	}
	codes := []code{
		{
			id: "dc-welcome20", code: "WELCOME20", description: "20% off your first template",
			kind: "PERCENTAGE", value: "20", maxUses: ptr(100), currentUses: 1,
			maxDiscount: ptr("15.00"), isActive: true, isPublic: true,
		},
		{
			id: "dc-flat10", code: "FLAT10", description: "10 off orders over 50",
			kind: "FIXED", value: "10", minPurchase: ptr("50.00"),
			validUntil: ptr(now.AddDate(0, 3, 0)), isActive: true, isPublic: true,
			currentUses: 1,
		},
		{
			id: "dc-partner", code: "PARTNER-VIP", description: "Partner only",
			kind: "PERCENTAGE", value: "35", isActive: true, isPublic: false,
		},
		{
			id: "dc-soon", code: "LAUNCH2X", description: "Launch week",
			kind: "PERCENTAGE", value: "50", validFrom: ptr(now.AddDate(0, 0, 7)),
			isActive: true, isPublic: true,
		},
	}
	purchases := []purchase{
		{
			id: "pur-demo-reserved", templateID: "tpl-resume-classic", userID: "user-demo",
			email: "demo@folio.local", finalPrice: "39.20",
			usage: &usage{id: "use-demo-reserved", codeID: "dc-welcome20", amount: "9.80", expireIn: reservationTTL},
		},
		{
			id: "pur-demo-expired", templateID: "tpl-portfolio-pro", userID: "user-demo",
			email: "demo@folio.local", finalPrice: "69.00",
			usage: &usage{id: "use-demo-expired", codeID: "dc-flat10", amount: "10.00", expireIn: -time.Minute},
		},
		{
			id: "pur-demo-plain", templateID: "tpl-portfolio-pro",
			email: "guest@folio.local", finalPrice: "79.00",
		},
		{
			id: "pur-demo-retired", templateID: "tpl-retired", userID: "user-demo",
			email: "demo@folio.local", finalPrice: "19.00",
		},
	}
	return templates, codes, purchases
}

func main() {
	var (
		databaseURL    string
		reservationTTL time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.DurationVar(&reservationTTL, "reservation-ttl", 15*time.Minute, "lifetime of the seeded discount reservation")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, reservationTTL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string, reservationTTL time.Duration) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	now := time.Now()
	templates, codes, purchases := demoData(reservationTTL, now)

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := seedTemplates(ctx, tx, templates); err != nil {
			return errors.Wrap(err, "seed templates")
		}
		if err := seedCodes(ctx, tx, codes); err != nil {
			return errors.Wrap(err, "seed discount codes")
		}
		if err := seedPurchases(ctx, tx, purchases, now); err != nil {
			return errors.Wrap(err, "seed purchases")
		}
		return nil
	})
}

func seedTemplates(ctx context.Context, tx pgx.Tx, templates []template) error {
	for _, t := range templates {
		if _, err := tx.Exec(ctx, `
			INSERT INTO templates (id, name, price, is_active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, price = EXCLUDED.price, is_active = EXCLUDED.is_active`,
			t.id, t.name, decimal.RequireFromString(t.price), t.isActive,
		); err != nil {
			return errors.Wrapf(err, "upsert template %s", t.id)
		}
		slog.Info("upserted template", slog.String("id", t.id), slog.Bool("active", t.isActive))
	}
	return nil
}

func seedCodes(ctx context.Context, tx pgx.Tx, codes []code) error {
	for _, c := range codes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO discount_codes (
				id, code, description, discount_type, discount_value, max_uses, current_uses,
				min_purchase_amount, max_discount_amount, valid_from, valid_until, is_active, is_public
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				code = EXCLUDED.code,
				description = EXCLUDED.description,
				discount_type = EXCLUDED.discount_type,
				discount_value = EXCLUDED.discount_value,
				max_uses = EXCLUDED.max_uses,
				current_uses = EXCLUDED.current_uses,
				min_purchase_amount = EXCLUDED.min_purchase_amount,
				max_discount_amount = EXCLUDED.max_discount_amount,
				valid_from = EXCLUDED.valid_from,
				valid_until = EXCLUDED.valid_until,
				is_active = EXCLUDED.is_active,
				is_public = EXCLUDED.is_public,
				updated_at = now()`,
			c.id, c.code, c.description, c.kind, decimal.RequireFromString(c.value),
			c.maxUses, c.currentUses, optDecimal(c.minPurchase), optDecimal(c.maxDiscount),
			c.validFrom, c.validUntil, c.isActive, c.isPublic,
		); err != nil {
			return errors.Wrapf(err, "upsert code %s", c.code)
		}
		slog.Info("upserted discount code", slog.String("code", c.code), slog.String("type", c.kind))
	}
	return nil
}

// seedPurchases resets each demo purchase to PENDING so checkout can be
// replayed after every seed run.
func seedPurchases(ctx context.Context, tx pgx.Tx, purchases []purchase, now time.Time) error {
	for _, p := range purchases {
		var userID *string
		if p.userID != "" {
			userID = &p.userID
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchases (id, template_id, user_id, user_email, status, final_price)
			VALUES ($1, $2, $3, $4, 'PENDING', $5)
			ON CONFLICT (id) DO UPDATE SET
				template_id = EXCLUDED.template_id,
				user_id = EXCLUDED.user_id,
				user_email = EXCLUDED.user_email,
				status = 'PENDING',
				final_price = EXCLUDED.final_price,
				session_id = NULL,
				updated_at = now()`,
			p.id, p.templateID, userID, p.email, decimal.RequireFromString(p.finalPrice),
		); err != nil {
			return errors.Wrapf(err, "upsert purchase %s", p.id)
		}

		if u := p.usage; u != nil {
			if _, err := tx.Exec(ctx, `
				INSERT INTO discount_usages (id, code_id, purchase_id, user_id, status, discount_amount, expires_at)
				VALUES ($1, $2, $3, $4, 'RESERVED', $5, $6)
				ON CONFLICT (id) DO UPDATE SET
					status = 'RESERVED',
					discount_amount = EXCLUDED.discount_amount,
					expires_at = EXCLUDED.expires_at,
					released_at = NULL`,
				u.id, u.codeID, p.id, userID, decimal.RequireFromString(u.amount), now.Add(u.expireIn),
			); err != nil {
				return errors.Wrapf(err, "upsert usage %s", u.id)
			}
		}

		slog.Info("upserted purchase",
			slog.String("id", p.id),
			slog.String("template", p.templateID),
			slog.Bool("reserved_discount", p.usage != nil),
		)
	}
	return nil
}

func optDecimal(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	return ptr(decimal.RequireFromString(*s))
}
