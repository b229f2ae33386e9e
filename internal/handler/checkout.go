package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
	"github.com/xenking/folio-checkout/internal/domain/checkout"
	"github.com/xenking/folio-checkout/pkg/httpmiddleware"
)

// Checkout handles POST /api/checkout with body {purchaseId, userId?, userEmail?}.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := checkout.SettleRequest{
		IP:        httpmiddleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	err = decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "purchaseId":
			req.PurchaseID, err = decodeStr(d, key)
		case "userId":
			req.UserID, err = decodeStr(d, key)
		case "userEmail":
			req.UserEmail, err = decodeStr(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.PurchaseID == "" {
		writeError(w, r, apperr.New(apperr.KindValidation, "purchaseId is required"))
		return
	}

	sess, err := h.checkout.Settle(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p := sess.Purchase
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
			e.Field("checkout", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("purchaseId", func(e *jx.Encoder) { e.Str(p.ID) })
					e.Field("status", func(e *jx.Encoder) { e.Str(string(p.Status)) })
					e.Field("sessionId", func(e *jx.Encoder) { e.Str(sess.SessionID) })
					e.Field("finalPrice", func(e *jx.Encoder) { money(e, p.FinalPrice) })
					e.Field("currency", func(e *jx.Encoder) { e.Str(p.Currency) })
					e.Field("templateId", func(e *jx.Encoder) {
						if p.Template == nil {
							e.Null()
							return
						}
						e.Str(p.Template.ID)
					})
				})
			})
			e.Field("checkoutUrl", func(e *jx.Encoder) { e.Str(h.baseURL + "/" + sess.SessionID) })
			e.Field("expiresAt", func(e *jx.Encoder) { timestamp(e, sess.ExpiresAt) })
		})
	})
}
