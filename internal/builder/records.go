package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/fixturesnap/fixturesnap/internal/types"
)

// Records is the explicit registration map population code writes into.
// A registered name is assigned directly to its matching row at dump time,
// bypassing naming rules and name-column inference.
type Records struct {
	byTable map[string][]*registration
}

type registration struct {
	name  string
	match func(types.Row) bool
	used  bool
}

func NewRecords() *Records {
	return &Records{byTable: make(map[string][]*registration)}
}

// Register names the row whose attributes match every key in attrs.
func (r *Records) Register(name, table string, attrs map[string]interface{}) {
	r.add(table, &registration{
		name: name,
		match: func(row types.Row) bool {
			for col, want := range attrs {
				got, ok := row[col]
				if !ok || !looselyEqual(got, want) {
					return false
				}
			}
			return true
		},
	})
}

// RegisterRow names the row identified by its primary key value.
func (r *Records) RegisterRow(ctx context.Context, name, table, pkColumn string, pkValue interface{}) error {
	if pkColumn == "" {
		return fmt.Errorf("record %s: primary key column cannot be empty", name)
	}
	r.add(table, &registration{
		name: name,
		match: func(row types.Row) bool {
			got, ok := row[pkColumn]
			return ok && looselyEqual(got, pkValue)
		},
	})
	return nil
}

func (r *Records) add(table string, reg *registration) {
	r.byTable[table] = append(r.byTable[table], reg)
}

// NameFor returns the registered name for a row, if any. Each registration
// claims at most one row, in registration order.
func (r *Records) NameFor(table string, row types.Row) (string, bool) {
	for _, reg := range r.byTable[table] {
		if !reg.used && reg.match(row) {
			reg.used = true
			return reg.name, true
		}
	}
	return "", false
}

// looselyEqual compares a raw driver value against a user-supplied one.
// Driver values come back as int64/[]byte/time.Time regardless of what the
// population code inserted, so comparison goes through a normalized string
// form.
func looselyEqual(got, want interface{}) bool {
	return normalize(got) == normalize(want)
}

func normalize(v interface{}) string {
	switch value := v.(type) {
	case []byte:
		return string(value)
	case time.Time:
		return value.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", value)
	}
}
