package db

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)

	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name
		assert.NotEmpty(t, m.SQL, m.Name)
	}
	assert.True(t, sort.StringsAreSorted(names))
	assert.Equal(t, "migrations/001_schema.sql", names[0])
	assert.Contains(t, ms[0].SQL, "CREATE TABLE IF NOT EXISTS discount_codes")
}
