package serialize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/fixturesnap/fixturesnap/internal/types"
)

// Type converts between a column's in-memory representation and its canonical
// storable primitive (string, number, bool, or structured value).
type Type interface {
	Serialize(v interface{}) (interface{}, error)
	Deserialize(v interface{}) (interface{}, error)
}

// Registry holds the rich types for one table, keyed by column name and
// resolved once at schema-read time. Columns without a rich type are opaque
// scalars and bypass the registry entirely.
type Registry struct {
	types map[string]Type
}

func NewRegistry(table types.SchemaTable) *Registry {
	r := &Registry{types: make(map[string]Type)}
	for _, col := range table.Columns {
		if t := resolveType(col); t != nil {
			r.types[col.Name] = t
		}
	}
	return r
}

// Lookup returns the rich type for a column, or nil for opaque scalars.
func (r *Registry) Lookup(column string) Type {
	return r.types[column]
}

func resolveType(col types.SchemaColumn) Type {
	dbType := strings.ToLower(col.Type)
	switch {
	case isJSONFamily(dbType):
		return jsonType{}
	case isArrayType(dbType):
		return arrayType{}
	case isDecimalType(dbType):
		return decimalType{}
	case dbType == "date":
		return timeType{layoutDate}
	case strings.HasPrefix(dbType, "timestamp"), dbType == "datetime":
		return timeType{layoutTimestamp}
	default:
		return nil
	}
}

// isJSONFamily detects JSON-family physical storage types (json, jsonb).
func isJSONFamily(dbType string) bool {
	return dbType == "json" || dbType == "jsonb"
}

func isArrayType(dbType string) bool {
	// Postgres reports arrays either with a [] suffix (information_schema
	// data_type "ARRAY" normalized by the adapter) or a leading underscore
	// (udt_name, e.g. _text).
	return strings.HasSuffix(dbType, "[]") || strings.HasPrefix(dbType, "_")
}

func isDecimalType(dbType string) bool {
	return strings.HasPrefix(dbType, "numeric") || strings.HasPrefix(dbType, "decimal")
}

// jsonType produces structured values, never string-encoded blobs, so fixture
// files stay loadable by a generic YAML reader with no custom tags.
type jsonType struct{}

func (jsonType) Serialize(v interface{}) (interface{}, error) {
	switch value := v.(type) {
	case []byte:
		return decodeJSON(value)
	case string:
		return decodeJSON([]byte(value))
	case map[string]interface{}, []interface{}:
		return value, nil
	default:
		// Last resort for driver-decoded values: round-trip through the
		// encoder to strip any concrete typing.
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("value is not JSON-representable: %w", err)
		}
		return decodeJSON(raw)
	}
}

func (jsonType) Deserialize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON value: %w", err)
	}
	return raw, nil
}

func decodeJSON(raw []byte) (interface{}, error) {
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode JSON column value: %w", err)
	}
	return out, nil
}

// arrayType handles Postgres array columns, preserving element order.
type arrayType struct{}

func (arrayType) Serialize(v interface{}) (interface{}, error) {
	switch value := v.(type) {
	case []string:
		return toSequence(value), nil
	case []interface{}:
		return value, nil
	case []byte, string:
		var parsed pq.StringArray
		if err := parsed.Scan(v); err != nil {
			return nil, fmt.Errorf("failed to parse array literal: %w", err)
		}
		return toSequence(parsed), nil
	default:
		return nil, fmt.Errorf("unsupported array value of type %T", v)
	}
}

func (arrayType) Deserialize(v interface{}) (interface{}, error) {
	seq, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("array value must be a sequence, got %T", v)
	}
	elems := make([]string, len(seq))
	for i, e := range seq {
		elems[i] = fmt.Sprintf("%v", e)
	}
	return pq.Array(elems).Value()
}

func toSequence(elems []string) []interface{} {
	seq := make([]interface{}, len(elems))
	for i, e := range elems {
		seq[i] = e
	}
	return seq
}

// decimalType keeps numerics as canonical strings so precision survives the
// YAML round trip.
type decimalType struct{}

func (decimalType) Serialize(v interface{}) (interface{}, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case []byte:
		return string(value), nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(value, 10), nil
	default:
		return nil, fmt.Errorf("unsupported decimal value of type %T", v)
	}
}

func (decimalType) Deserialize(v interface{}) (interface{}, error) {
	return fmt.Sprintf("%v", v), nil
}

// timeType formats dates and timestamps using the layouts currently active in
// the package-level format state (engine-native during a dump pass).
type timeType struct {
	kind formatKind
}

func (t timeType) Serialize(v interface{}) (interface{}, error) {
	switch value := v.(type) {
	case time.Time:
		return formatTime(value, t.kind), nil
	case string:
		return value, nil
	case []byte:
		return string(value), nil
	default:
		return nil, fmt.Errorf("unsupported time value of type %T", v)
	}
}

func (t timeType) Deserialize(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("time value must be a string, got %T", v)
	}
	parsed, err := time.Parse(activeLayout(t.kind), s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse time value %q: %w", s, err)
	}
	return parsed, nil
}
