package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"

	"github.com/fixturesnap/fixturesnap/internal/database/common"
	"github.com/fixturesnap/fixturesnap/internal/types"
)

type Adapter struct {
	db *sql.DB
	qb squirrel.StatementBuilderType
}

func New() *Adapter {
	return &Adapter{
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

func NewWithDB(db *sql.DB) *Adapter {
	a := New()
	a.db = db
	return a
}

func (m *Adapter) Connect(ctx context.Context, url string) error {
	// parseTime gives time.Time for date/timestamp columns instead of []byte.
	if !strings.Contains(url, "parseTime") {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "parseTime=true"
	}

	db, err := sql.Open("mysql", url)
	if err != nil {
		return fmt.Errorf("failed to open mysql connection: %w", err)
	}
	m.db = db
	return nil
}

func (m *Adapter) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *Adapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *Adapter) DB() *sql.DB {
	return m.db
}

func (m *Adapter) AllTableNames(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

func (m *Adapter) TableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []types.SchemaColumn
	for rows.Next() {
		var name, dataType, isNullable, columnKey string
		if err := rows.Scan(&name, &dataType, &isNullable, &columnKey); err != nil {
			return nil, err
		}
		columns = append(columns, types.SchemaColumn{
			Name:      name,
			Type:      strings.ToLower(dataType),
			Nullable:  isNullable == "YES",
			IsPrimary: columnKey == "PRI",
		})
	}
	return columns, rows.Err()
}

func (m *Adapter) TableRows(ctx context.Context, table types.SchemaTable) ([]types.Row, error) {
	cols := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		cols[i] = quote(col.Name)
	}

	query := m.qb.Select(cols...).From(quote(table.Name))
	if pk := common.PrimaryKey(table); pk != "" {
		query = query.OrderBy(quote(pk))
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query for %s: %w", table.Name, err)
	}

	rows, err := m.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table.Name, err)
	}
	defer rows.Close()

	return common.ScanRows(rows)
}

func (m *Adapter) DeleteAllRows(ctx context.Context, tableName string) error {
	sqlStr, args, err := m.qb.Delete(quote(tableName)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete for %s: %w", tableName, err)
	}
	if _, err := m.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to delete rows from %s: %w", tableName, err)
	}
	return nil
}

func (m *Adapter) SuspendReferentialIntegrity(ctx context.Context) (func() error, error) {
	if _, err := m.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return nil, fmt.Errorf("failed to suspend foreign key checks: %w", err)
	}
	return func() error {
		_, err := m.db.ExecContext(context.Background(), "SET FOREIGN_KEY_CHECKS = 1")
		return err
	}, nil
}

func quote(identifier string) string {
	return "`" + identifier + "`"
}
