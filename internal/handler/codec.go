package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
	"github.com/xenking/folio-checkout/internal/domain/discount"
)

const maxBodyBytes = 1 << 20

var errBadJSON = apperr.New(apperr.KindValidation, "Invalid JSON body")

// statusOf maps an error kind to its HTTP status.
func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation, apperr.KindInvalidState, apperr.KindUnavailable, apperr.KindExpiredReservation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers {"error": msg}. Internal errors are logged and hidden
// behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	msg := apperr.MessageOf(err, "Internal server error")

	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.New(apperr.KindValidation, "Request body too large")
		}
		return nil, errors.Wrap(err, "read body")
	}
	if len(body) == 0 {
		return nil, errBadJSON
	}
	return jx.DecodeBytes(body), nil
}

// Field encoders.

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func number(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func optMoney(e *jx.Encoder, d *decimal.Decimal) {
	if d == nil {
		e.Null()
		return
	}
	money(e, *d)
}

func optTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	timestamp(e, *t)
}

func optInt(e *jx.Encoder, v *int) {
	if v == nil {
		e.Null()
		return
	}
	e.Int(*v)
}

func strs(e *jx.Encoder, s []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range s {
			e.Str(v)
		}
	})
}

// encodePublicCode writes the fields of a code that anyone may see.
func encodePublicCode(e *jx.Encoder, c *discount.Code) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("discountType", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("discountValue", func(e *jx.Encoder) { number(e, c.DiscountValue) })
		e.Field("minPurchaseAmount", func(e *jx.Encoder) { optMoney(e, c.MinPurchaseAmount) })
		e.Field("maxDiscountAmount", func(e *jx.Encoder) { optMoney(e, c.MaxDiscountAmount) })
		e.Field("validUntil", func(e *jx.Encoder) { optTime(e, c.ValidUntil) })
	})
}

// encodeAdminCode writes every stored field of a code.
func encodeAdminCode(e *jx.Encoder, c *discount.Code) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("discountType", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("discountValue", func(e *jx.Encoder) { number(e, c.DiscountValue) })
		e.Field("maxUses", func(e *jx.Encoder) { optInt(e, c.MaxUses) })
		e.Field("currentUses", func(e *jx.Encoder) { e.Int(c.CurrentUses) })
		e.Field("maxUsesPerUser", func(e *jx.Encoder) { optInt(e, c.MaxUsesPerUser) })
		e.Field("validFrom", func(e *jx.Encoder) { optTime(e, c.ValidFrom) })
		e.Field("validUntil", func(e *jx.Encoder) { optTime(e, c.ValidUntil) })
		e.Field("minPurchaseAmount", func(e *jx.Encoder) { optMoney(e, c.MinPurchaseAmount) })
		e.Field("maxDiscountAmount", func(e *jx.Encoder) { optMoney(e, c.MaxDiscountAmount) })
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(c.IsActive) })
		e.Field("isPublic", func(e *jx.Encoder) { e.Bool(c.IsPublic) })
		e.Field("templateIds", func(e *jx.Encoder) { strs(e, c.TemplateIDs) })
		e.Field("excludedTemplateIds", func(e *jx.Encoder) { strs(e, c.ExcludedTemplateIDs) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, c.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, c.UpdatedAt) })
	})
}

// Field decoders. Each accepts JSON null as "absent".

func decodeNull(d *jx.Decoder) (bool, error) {
	if d.Next() != jx.Null {
		return false, nil
	}
	return true, d.Null()
}

func decodeStr(d *jx.Decoder, field string) (string, error) {
	if null, err := decodeNull(d); null || err != nil {
		return "", err
	}
	if d.Next() != jx.String {
		return "", invalidField(field, "must be a string")
	}
	return d.Str()
}

func decodeDecimal(d *jx.Decoder, field string) (*decimal.Decimal, error) {
	if null, err := decodeNull(d); null || err != nil {
		return nil, err
	}
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		raw = s
	default:
		return nil, invalidField(field, "must be a number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, invalidField(field, "must be a number")
	}
	return &v, nil
}

func decodeInt(d *jx.Decoder, field string) (*int, error) {
	if null, err := decodeNull(d); null || err != nil {
		return nil, err
	}
	if d.Next() != jx.Number {
		return nil, invalidField(field, "must be an integer")
	}
	n, err := d.Num()
	if err != nil || !n.IsInt() {
		return nil, invalidField(field, "must be an integer")
	}
	v, err := n.Int64()
	if err != nil {
		return nil, invalidField(field, "must be an integer")
	}
	i := int(v)
	return &i, nil
}

func decodeBool(d *jx.Decoder, field string) (*bool, error) {
	if null, err := decodeNull(d); null || err != nil {
		return nil, err
	}
	if d.Next() != jx.Bool {
		return nil, invalidField(field, "must be a boolean")
	}
	v, err := d.Bool()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeTime(d *jx.Decoder, field string) (*time.Time, error) {
	s, err := decodeStr(d, field)
	if err != nil || s == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, invalidField(field, "must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func decodeStrs(d *jx.Decoder, field string) ([]string, error) {
	if null, err := decodeNull(d); null || err != nil {
		return nil, err
	}
	if d.Next() != jx.Array {
		return nil, invalidField(field, "must be an array of strings")
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.String {
			return invalidField(field, "must be an array of strings")
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func invalidField(field, problem string) error {
	return apperr.New(apperr.KindValidation, field+" "+problem)
}

// decodeObject runs fn for every key of the top-level object. Syntax errors
// become errBadJSON; validation errors from fn pass through.
func decodeObject(d *jx.Decoder, fn func(d *jx.Decoder, key string) error) error {
	if d.Next() != jx.Object {
		return errBadJSON
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		return fn(d, key)
	})
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) == apperr.KindValidation {
		return err
	}
	return errBadJSON
}
