package postgres

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/folio-checkout/internal/domain/discount"
)

func TestListWhere(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name      string
		filter    discount.Filter
		wantWhere string
		wantArgs  []any
	}{
		{name: "no filters", filter: discount.Filter{}},
		{
			name:      "active only",
			filter:    discount.Filter{Active: &yes},
			wantWhere: " WHERE is_active = $1",
			wantArgs:  []any{true},
		},
		{
			name:      "all filters",
			filter:    discount.Filter{Active: &no, Public: &yes, Search: " summer "},
			wantWhere: " WHERE is_active = $1 AND is_public = $2 AND (code ILIKE $3 OR description ILIKE $3)",
			wantArgs:  []any{false, true, "%summer%"},
		},
		{
			name:      "search escapes wildcards",
			filter:    discount.Filter{Search: "50%_off"},
			wantWhere: " WHERE (code ILIKE $1 OR description ILIKE $1)",
			wantArgs:  []any{`%50\%\_off%`},
		},
		{name: "blank search ignored", filter: discount.Filter{Search: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := listWhere(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestRetryable(t *testing.T) {
	wrapped := errors.Wrap(&pgconn.PgError{Code: codeSerializationFailure}, "mark processing")

	assert.True(t, retryable(wrapped))
	assert.True(t, retryable(&pgconn.PgError{Code: codeDeadlockDetected}))
	assert.False(t, retryable(&pgconn.PgError{Code: codeUniqueViolation}))
	assert.False(t, retryable(errors.New("boom")))
	assert.False(t, retryable(nil))
}

func TestIntPtr(t *testing.T) {
	assert.Nil(t, intPtr(nil))

	v := int32(7)
	got := intPtr(&v)
	if assert.NotNil(t, got) {
		assert.Equal(t, 7, *got)
	}
}

func TestNonNil(t *testing.T) {
	assert.Equal(t, []string{}, nonNil(nil))
	assert.Equal(t, []string{"a"}, nonNil([]string{"a"}))
}
