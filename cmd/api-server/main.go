package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/folio-checkout/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "config")
		}
		lg.Info("Starting folio-api",
			zap.String("addr", cfg.Addr),
			zap.Duration("session_ttl", cfg.Checkout.SessionTTL),
			zap.Int("rate_limit", cfg.RateLimit.Max),
		)
		return appkg.Run(ctx, lg, m, cfg)
	})
}
