package common

import (
	"database/sql"
	"fmt"

	"github.com/fixturesnap/fixturesnap/internal/types"
)

// ScanRows reads every row of a result set into column-keyed maps, values in
// raw driver form.
func ScanRows(rows *sql.Rows) ([]types.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var result []types.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(types.Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// PrimaryKey returns the table's primary key column name, or "" when the
// table has none.
func PrimaryKey(table types.SchemaTable) string {
	for _, col := range table.Columns {
		if col.IsPrimary {
			return col.Name
		}
	}
	return ""
}
