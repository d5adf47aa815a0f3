package serialize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixturesnap/fixturesnap/internal/types"
)

func column(name, dbType string) types.SchemaColumn {
	return types.SchemaColumn{Name: name, Type: dbType}
}

func TestNullValuesAreAbsent(t *testing.T) {
	table := types.SchemaTable{Name: "users", Columns: []types.SchemaColumn{
		column("id", "int8"),
		column("bio", "text"),
		column("settings", "jsonb"),
	}}
	s := New(table)

	for _, col := range table.Columns {
		_, present, err := s.Serialize(col, nil)
		require.NoError(t, err)
		assert.False(t, present, "nil %s must be omitted, not emitted as null", col.Name)
	}
}

func TestOpaqueScalarPassthrough(t *testing.T) {
	table := types.SchemaTable{Name: "users", Columns: []types.SchemaColumn{
		column("id", "int8"),
		column("email", "varchar"),
		column("active", "bool"),
	}}
	s := New(table)

	v, present, err := s.Serialize(column("id", "int8"), int64(42))
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, int64(42), v)

	// Raw byte values pass through as strings, not base64 blobs.
	v, _, err = s.Serialize(column("email", "varchar"), []byte("bob@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", v)

	v, _, err = s.Serialize(column("active", "bool"), true)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestJSONColumnsProduceStructuredValues(t *testing.T) {
	table := types.SchemaTable{Name: "users", Columns: []types.SchemaColumn{
		column("settings", "jsonb"),
	}}
	s := New(table)

	v, present, err := s.Serialize(table.Columns[0], []byte(`{"theme":"dark","tabs":3}`))
	require.NoError(t, err)
	require.True(t, present)

	m, ok := v.(map[string]interface{})
	require.True(t, ok, "JSON column must serialize to a mapping, got %T", v)
	assert.Equal(t, "dark", m["theme"])
	assert.EqualValues(t, 3, m["tabs"])
}

func TestMalformedJSONIsFatal(t *testing.T) {
	table := types.SchemaTable{Name: "users", Columns: []types.SchemaColumn{
		column("settings", "json"),
	}}
	s := New(table)

	_, _, err := s.Serialize(table.Columns[0], []byte(`{"theme":`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "settings")
}

func TestArrayColumnsKeepOrder(t *testing.T) {
	table := types.SchemaTable{Name: "plants", Columns: []types.SchemaColumn{
		column("stages", "_text"),
	}}
	s := New(table)

	// As returned by the postgres driver: a raw array literal.
	v, present, err := s.Serialize(table.Columns[0], []byte(`{shading,rooting,seeding}`))
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, []interface{}{"shading", "rooting", "seeding"}, v)
}

func TestArrayRoundTrip(t *testing.T) {
	reg := NewRegistry(types.SchemaTable{Name: "plants", Columns: []types.SchemaColumn{
		column("stages", "text[]"),
	}})
	at := reg.Lookup("stages")
	require.NotNil(t, at)

	serialized, err := at.Serialize([]string{"shading", "rooting", "seeding"})
	require.NoError(t, err)

	stored, err := at.Deserialize(serialized)
	require.NoError(t, err)

	again, err := at.Serialize(stored.(string))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"shading", "rooting", "seeding"}, again)
}

func TestDecimalsSerializeAsStrings(t *testing.T) {
	reg := NewRegistry(types.SchemaTable{Name: "orders", Columns: []types.SchemaColumn{
		column("total", "numeric"),
	}})
	dt := reg.Lookup("total")
	require.NotNil(t, dt)

	v, err := dt.Serialize([]byte("19.99"))
	require.NoError(t, err)
	assert.Equal(t, "19.99", v)

	v, err = dt.Serialize(float64(0.1))
	require.NoError(t, err)
	assert.Equal(t, "0.1", v)
}

func TestTimestampNativeFormatIsScoped(t *testing.T) {
	reg := NewRegistry(types.SchemaTable{Name: "events", Columns: []types.SchemaColumn{
		column("occurred_at", "timestamptz"),
		column("on_date", "date"),
	}})
	ts := reg.Lookup("occurred_at")
	date := reg.Lookup("on_date")
	require.NotNil(t, ts)
	require.NotNil(t, date)

	when := time.Date(2024, 3, 15, 9, 30, 0, 250000000, time.UTC)

	release := AcquireNativeFormats()
	v, err := ts.Serialize(when)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15 09:30:00.25", v)

	v, err = date.Serialize(when)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", v)
	release()

	// Outside the dump pass the generic display format is back.
	v, err = ts.Serialize(when)
	require.NoError(t, err)
	assert.Equal(t, when.Format(time.RFC3339), v)
}

func TestSerializeRowKeepsColumnOrderAndDropsNulls(t *testing.T) {
	table := types.SchemaTable{Name: "users", Columns: []types.SchemaColumn{
		column("id", "int8"),
		column("email", "varchar"),
		column("bio", "text"),
	}}
	s := New(table)

	attrs, err := s.SerializeRow(table, types.Row{
		"email": []byte("bob@example.com"),
		"id":    int64(1),
		"bio":   nil,
	})
	require.NoError(t, err)

	require.Len(t, attrs, 2)
	assert.Equal(t, "id", attrs[0].Column)
	assert.Equal(t, "email", attrs[1].Column)
}
