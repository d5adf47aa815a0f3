package types

// SchemaColumn describes one column as reported by the database.
type SchemaColumn struct {
	Name      string
	Type      string // physical storage type as reported by the engine (lowercased)
	Nullable  bool
	IsPrimary bool
}

type SchemaTable struct {
	Name    string
	Columns []SchemaColumn
}

// Row is one table row keyed by column name, values in driver form
// (pre-cast: int64, float64, bool, string, []byte, time.Time or nil).
type Row map[string]interface{}

// NamedRow is a row together with its resolved fixture key. Fixture files
// keep column order, so attributes are a slice, not a map.
type NamedRow struct {
	Key        string
	Attributes []Attribute
}

type Attribute struct {
	Column string
	Value  interface{}
}

// FixtureTable is the serialized unit written to one file per table.
type FixtureTable struct {
	Name string
	Rows []NamedRow
}
