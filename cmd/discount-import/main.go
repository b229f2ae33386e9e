package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/folio-checkout/internal/domain/discount"
	"github.com/xenking/folio-checkout/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		discountType  string
		value         string
		description   string
		maxUses       int
		validDays     int
		private       bool
		workers       int
		bloomCapacity uint
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&discountType, "type", "PERCENTAGE", "discount type of imported codes (PERCENTAGE or FIXED)")
	flag.StringVar(&value, "value", "10", "discount value of imported codes")
	flag.StringVar(&description, "description", "Imported promo code", "description of imported codes")
	flag.IntVar(&maxUses, "max-uses", 0, "usage cap per code, 0 for unlimited")
	flag.IntVar(&validDays, "valid-days", 0, "days from now until imported codes expire, 0 for no expiry")
	flag.BoolVar(&private, "private", false, "hide imported codes from public validation")
	flag.IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "concurrent inserts")
	flag.UintVar(&bloomCapacity, "bloom-capacity", 1_000_000, "expected number of distinct codes")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: discount-import [flags] codes1.gz [codes2.gz ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	tmpl, err := buildTemplate(discountType, value, description, maxUses, validDays, private, time.Now())
	if err != nil {
		slog.Error("invalid code terms", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := options{
		template:      tmpl,
		workers:       workers,
		bloomCapacity: bloomCapacity,
		bloomFPR:      0.001,
	}
	if err := run(ctx, databaseURL, files, opts); err != nil {
		slog.Error("discount import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, opts options) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := discount.NewService(postgres.NewDiscountRepository(pool))

	slog.Info("importing codes", slog.Int("files", len(files)), slog.Int("workers", opts.workers))
	st, err := importFiles(ctx, files, svc, opts)
	slog.Info("import finished", st.attrs()...)
	return err
}

// buildTemplate turns the flags into the shared terms of every imported code
// and checks them once up front.
func buildTemplate(
	discountType, value, description string,
	maxUses, validDays int,
	private bool,
	now time.Time,
) (discount.CreateRequest, error) {
	t, err := discount.ParseType(discountType)
	if err != nil {
		return discount.CreateRequest{}, err
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return discount.CreateRequest{}, errors.Wrapf(err, "parse value %q", value)
	}
	if err := discount.CheckValue(t, v); err != nil {
		return discount.CreateRequest{}, err
	}

	public := !private
	req := discount.CreateRequest{
		Description:   description,
		DiscountType:  string(t),
		DiscountValue: v,
		IsPublic:      &public,
	}
	if maxUses > 0 {
		req.MaxUses = &maxUses
	}
	if validDays > 0 {
		until := now.AddDate(0, 0, validDays)
		req.ValidUntil = &until
	}
	return req, nil
}
