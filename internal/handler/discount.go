package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
	"github.com/xenking/folio-checkout/internal/domain/discount"
)

// ValidateDiscount handles GET /api/discount/validate?code=X[&cartTotal=N].
func (h *Handler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("code")
	if raw == "" {
		writeError(w, r, apperr.New(apperr.KindValidation, "code is required"))
		return
	}

	var cartTotal *decimal.Decimal
	if s := q.Get("cartTotal"); s != "" {
		v, err := decimal.NewFromString(s)
		if err != nil || !discount.IsAmount(v) {
			writeError(w, r, invalidField("cartTotal", "must be a number"))
			return
		}
		cartTotal = &v
	}

	res, err := h.discounts.Check(r.Context(), raw, cartTotal)
	switch {
	case errors.Is(err, discount.ErrCodeNotFound):
		writeJSON(w, http.StatusNotFound, func(e *jx.Encoder) { encodeCheck(e, res) })
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCheck(e, res) })
}

func encodeCheck(e *jx.Encoder, res *discount.CheckResult) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("valid", func(e *jx.Encoder) { e.Bool(res.Valid) })
		if !res.Valid {
			e.Field("reason", func(e *jx.Encoder) { e.Str(string(res.Reason)) })
			e.Field("message", func(e *jx.Encoder) { e.Str(res.Message) })
			return
		}
		e.Field("code", func(e *jx.Encoder) { encodePublicCode(e, res.Code) })
		if a := res.Amounts; a != nil {
			e.Field("discountAmount", func(e *jx.Encoder) { money(e, a.DiscountAmount) })
			e.Field("finalTotal", func(e *jx.Encoder) { money(e, a.FinalTotal) })
		}
	})
}

// ListDiscounts handles GET /api/admin/discount.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.discounts.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("codes", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range page.Codes {
						encodeAdminCode(e, &page.Codes[i])
					}
				})
			})
			e.Field("pagination", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("page", func(e *jx.Encoder) { e.Int(page.Page) })
					e.Field("limit", func(e *jx.Encoder) { e.Int(page.Limit) })
					e.Field("total", func(e *jx.Encoder) { e.Int(page.Total) })
					e.Field("totalPages", func(e *jx.Encoder) { e.Int(page.TotalPages()) })
				})
			})
		})
	})
}

func parseFilter(r *http.Request) (discount.Filter, error) {
	q := r.URL.Query()
	f := discount.Filter{Search: q.Get("search")}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &f.Page},
		{"limit", &f.Limit},
	} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return f, invalidField(p.name, "must be an integer")
		}
		*p.dst = v
	}

	for _, p := range []struct {
		name string
		dst  **bool
	}{
		{"active", &f.Active},
		{"public", &f.Public},
	} {
		switch q.Get(p.name) {
		case "":
		case "true":
			v := true
			*p.dst = &v
		case "false":
			v := false
			*p.dst = &v
		default:
			return f, invalidField(p.name, "must be true or false")
		}
	}
	return f, nil
}

// CreateDiscount handles POST /api/admin/discount.
func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeCreate(d)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.discounts.Create(r.Context(), req, actorFrom(r, "admin", discount.ActorAdmin))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { encodeAdminCode(e, c) })
		})
	})
}

func decodeCreate(d *jx.Decoder) (discount.CreateRequest, error) {
	var (
		req   discount.CreateRequest
		value *decimal.Decimal
	)
	err := decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "code":
			req.Code, err = decodeStr(d, key)
		case "description":
			req.Description, err = decodeStr(d, key)
		case "discountType":
			req.DiscountType, err = decodeStr(d, key)
		case "discountValue":
			value, err = decodeDecimal(d, key)
		case "maxUses":
			req.MaxUses, err = decodeInt(d, key)
		case "maxUsesPerUser":
			req.MaxUsesPerUser, err = decodeInt(d, key)
		case "validFrom":
			req.ValidFrom, err = decodeTime(d, key)
		case "validUntil":
			req.ValidUntil, err = decodeTime(d, key)
		case "minPurchaseAmount":
			req.MinPurchaseAmount, err = decodeDecimal(d, key)
		case "maxDiscountAmount":
			req.MaxDiscountAmount, err = decodeDecimal(d, key)
		case "isActive":
			req.IsActive, err = decodeBool(d, key)
		case "isPublic":
			req.IsPublic, err = decodeBool(d, key)
		case "templateIds":
			req.TemplateIDs, err = decodeStrs(d, key)
		case "excludedTemplateIds":
			req.ExcludedTemplateIDs, err = decodeStrs(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}

	switch {
	case req.Code == "":
		return req, apperr.New(apperr.KindValidation, "code is required")
	case req.DiscountType == "":
		return req, apperr.New(apperr.KindValidation, "discountType is required")
	case value == nil:
		return req, apperr.New(apperr.KindValidation, "discountValue is required")
	}
	req.DiscountValue = *value
	return req, nil
}
