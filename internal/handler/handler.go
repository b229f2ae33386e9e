// Package handler exposes the discount and checkout services over HTTP.
package handler

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
	"github.com/xenking/folio-checkout/internal/domain/checkout"
	"github.com/xenking/folio-checkout/internal/domain/discount"
	"github.com/xenking/folio-checkout/pkg/httpmiddleware"
)

// HeaderAPIKey carries the admin shared secret.
const HeaderAPIKey = "x-api-key"

// DiscountService is the part of discount.Service the routes use.
type DiscountService interface {
	Check(ctx context.Context, raw string, cartTotal *decimal.Decimal) (*discount.CheckResult, error)
	List(ctx context.Context, f discount.Filter) (*discount.Page, error)
	Create(ctx context.Context, req discount.CreateRequest, actor discount.Actor) (*discount.Code, error)
}

// CheckoutService is the part of checkout.Service the routes use.
type CheckoutService interface {
	Settle(ctx context.Context, req checkout.SettleRequest) (*checkout.Session, error)
}

// Config holds non-dependency handler settings.
type Config struct {
	// AdminAPIKey guards the admin routes. When empty every admin request
	// is rejected.
	AdminAPIKey string
	// CheckoutBaseURL is joined with the session id to form checkoutUrl.
	CheckoutBaseURL string
}

// Handler serves the public, checkout and admin routes.
type Handler struct {
	discounts   DiscountService
	checkout    CheckoutService
	adminKey    [sha256.Size]byte
	hasAdminKey bool
	baseURL     string
}

// New creates a Handler.
func New(cfg Config, discounts DiscountService, settle CheckoutService) *Handler {
	return &Handler{
		discounts:   discounts,
		checkout:    settle,
		adminKey:    sha256.Sum256([]byte(cfg.AdminAPIKey)),
		hasAdminKey: cfg.AdminAPIKey != "",
		baseURL:     strings.TrimRight(cfg.CheckoutBaseURL, "/"),
	}
}

// Mount registers the API routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/discount/validate", h.ValidateDiscount)
		r.Post("/checkout", h.Checkout)
		r.Route("/admin/discount", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/", h.ListDiscounts)
			r.Post("/", h.CreateDiscount)
		})
	})
}

var errUnauthorized = apperr.New(apperr.KindAuth, "Unauthorized")

// requireAdmin compares the x-api-key header with the configured secret in
// constant time.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := sha256.Sum256([]byte(r.Header.Get(HeaderAPIKey)))
		if !h.hasAdminKey || subtle.ConstantTimeCompare(got[:], h.adminKey[:]) != 1 {
			writeError(w, r, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(r *http.Request, id string, typ discount.ActorType) discount.Actor {
	return discount.Actor{
		ID:        id,
		Type:      typ,
		IP:        httpmiddleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
