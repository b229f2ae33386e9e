// Package apperr defines the closed set of error kinds surfaced by the domain
// layer. Transport adapters map kinds to status codes; they never inspect
// message text.
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind classifies a domain failure.
type Kind uint8

const (
	// KindInternal is anything unexpected. It is the zero value so that
	// unclassified errors are never mistaken for client errors.
	KindInternal Kind = iota
	// KindValidation is bad input shape or format.
	KindValidation
	// KindNotFound is a missing purchase or discount code.
	KindNotFound
	// KindInvalidState is a purchase that is not PENDING.
	KindInvalidState
	// KindUnavailable is an inactive or missing template.
	KindUnavailable
	// KindExpiredReservation is a discount reservation that lapsed before checkout.
	KindExpiredReservation
	// KindConflict is a duplicate discount code.
	KindConflict
	// KindAuth is a bad or missing admin key.
	KindAuth
)

var kindNames = [...]string{
	KindInternal:           "internal",
	KindValidation:         "validation",
	KindNotFound:           "not_found",
	KindInvalidState:       "invalid_state",
	KindUnavailable:        "unavailable",
	KindExpiredReservation: "expired_reservation",
	KindConflict:           "conflict",
	KindAuth:               "auth",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is a classified domain error. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind with a client-safe message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies err under kind, keeping it reachable via errors.Is/As.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of the outermost *Error in err's
// chain, or fallback if there is none.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return fallback
}
