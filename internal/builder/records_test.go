package builder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixturesnap/fixturesnap/internal/types"
)

func TestRegisterMatchesByAttributes(t *testing.T) {
	rec := NewRecords()
	rec.Register("bob", "users", map[string]interface{}{"email": "bob@example.com"})

	name, ok := rec.NameFor("users", types.Row{"id": int64(1), "email": []byte("bob@example.com")})
	require.True(t, ok)
	assert.Equal(t, "bob", name)

	// A registration claims exactly one row.
	_, ok = rec.NameFor("users", types.Row{"id": int64(2), "email": []byte("bob@example.com")})
	assert.False(t, ok)
}

func TestRegisterRowMatchesByPrimaryKey(t *testing.T) {
	rec := NewRecords()
	require.NoError(t, rec.RegisterRow(context.Background(), "first", "users", "id", 1))

	name, ok := rec.NameFor("users", types.Row{"id": int64(1)})
	require.True(t, ok)
	assert.Equal(t, "first", name)

	_, ok = rec.NameFor("users", types.Row{"id": int64(2)})
	assert.False(t, ok)
}

func TestRegisterRowRequiresPrimaryKeyColumn(t *testing.T) {
	rec := NewRecords()
	assert.Error(t, rec.RegisterRow(context.Background(), "first", "users", "", 1))
}

func TestNameForIsScopedToTable(t *testing.T) {
	rec := NewRecords()
	rec.Register("bob", "users", map[string]interface{}{"id": 1})

	_, ok := rec.NameFor("accounts", types.Row{"id": int64(1)})
	assert.False(t, ok)
}

func TestLooselyEqualNormalizesDriverForms(t *testing.T) {
	assert.True(t, looselyEqual(int64(5), 5))
	assert.True(t, looselyEqual([]byte("x"), "x"))
	assert.False(t, looselyEqual("5", "6"))

	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, looselyEqual(when, when.In(time.FixedZone("X", 3600))))
}
