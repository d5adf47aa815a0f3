package serialize

import (
	"fmt"

	"github.com/fixturesnap/fixturesnap/internal/types"
)

// Serializer converts raw driver values into format-safe fixture values for
// one table, using the table's resolved type registry.
type Serializer struct {
	registry *Registry
}

func New(table types.SchemaTable) *Serializer {
	return &Serializer{registry: NewRegistry(table)}
}

// Serialize converts one column value. The second return reports presence:
// absent (nil) values are omitted from fixture files entirely, never written
// as explicit nulls.
func (s *Serializer) Serialize(col types.SchemaColumn, raw interface{}) (interface{}, bool, error) {
	if raw == nil {
		return nil, false, nil
	}

	t := s.registry.Lookup(col.Name)
	if t == nil {
		// Opaque scalar: the raw pre-cast stored form passes through.
		return passthrough(raw), true, nil
	}

	value, err := t.Serialize(raw)
	if err != nil {
		return nil, false, fmt.Errorf("column %s: %w", col.Name, err)
	}
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

// SerializeRow converts a full row in column order, dropping absent values.
func (s *Serializer) SerializeRow(table types.SchemaTable, row types.Row) ([]types.Attribute, error) {
	attrs := make([]types.Attribute, 0, len(table.Columns))
	for _, col := range table.Columns {
		raw, ok := row[col.Name]
		if !ok {
			continue
		}
		value, present, err := s.Serialize(col, raw)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		attrs = append(attrs, types.Attribute{Column: col.Name, Value: value})
	}
	return attrs, nil
}

// AttributeMap flattens a row's driver values into the map handed to naming
// rules: bytes become strings, everything else keeps its driver form.
func AttributeMap(row types.Row) map[string]interface{} {
	attrs := make(map[string]interface{}, len(row))
	for col, raw := range row {
		attrs[col] = passthrough(raw)
	}
	return attrs
}

func passthrough(raw interface{}) interface{} {
	if b, ok := raw.([]byte); ok {
		return string(b)
	}
	return raw
}
