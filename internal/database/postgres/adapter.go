package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/fixturesnap/fixturesnap/internal/database/common"
	"github.com/fixturesnap/fixturesnap/internal/types"
)

type Adapter struct {
	db *sql.DB
	qb squirrel.StatementBuilderType
}

func New() *Adapter {
	return &Adapter{
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// NewWithDB wraps an existing handle, used by tests.
func NewWithDB(db *sql.DB) *Adapter {
	a := New()
	a.db = db
	return a
}

func (p *Adapter) Connect(ctx context.Context, url string) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	p.db = db
	return nil
}

func (p *Adapter) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Adapter) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Adapter) DB() *sql.DB {
	return p.db
}

func (p *Adapter) AllTableNames(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
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

func (p *Adapter) TableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT c.column_name, c.udt_name, c.is_nullable,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
				WHERE tc.table_name = c.table_name
					AND tc.constraint_type = 'PRIMARY KEY'
					AND kcu.column_name = c.column_name
			) AS is_primary
		FROM information_schema.columns c
		WHERE c.table_name = $1 AND c.table_schema = 'public'
		ORDER BY c.ordinal_position
	`, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []types.SchemaColumn
	for rows.Next() {
		var name, udtName, isNullable string
		var isPrimary bool
		if err := rows.Scan(&name, &udtName, &isNullable, &isPrimary); err != nil {
			return nil, err
		}
		columns = append(columns, types.SchemaColumn{
			Name:      name,
			Type:      strings.ToLower(udtName),
			Nullable:  isNullable == "YES",
			IsPrimary: isPrimary,
		})
	}
	return columns, rows.Err()
}

func (p *Adapter) TableRows(ctx context.Context, table types.SchemaTable) ([]types.Row, error) {
	cols := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		cols[i] = quote(col.Name)
	}

	query := p.qb.Select(cols...).From(quote(table.Name))
	if pk := common.PrimaryKey(table); pk != "" {
		query = query.OrderBy(quote(pk))
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query for %s: %w", table.Name, err)
	}

	rows, err := p.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table.Name, err)
	}
	defer rows.Close()

	return common.ScanRows(rows)
}

func (p *Adapter) DeleteAllRows(ctx context.Context, tableName string) error {
	sqlStr, args, err := p.qb.Delete(quote(tableName)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete for %s: %w", tableName, err)
	}
	if _, err := p.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to delete rows from %s: %w", tableName, err)
	}
	return nil
}

// SuspendReferentialIntegrity disables trigger-based constraint checks for
// the session. The restore func reverts to the session default.
func (p *Adapter) SuspendReferentialIntegrity(ctx context.Context) (func() error, error) {
	if _, err := p.db.ExecContext(ctx, "SET session_replication_role = replica"); err != nil {
		return nil, fmt.Errorf("failed to suspend referential integrity: %w", err)
	}
	return func() error {
		_, err := p.db.ExecContext(context.Background(), "SET session_replication_role = DEFAULT")
		return err
	}, nil
}

func quote(identifier string) string {
	return `"` + identifier + `"`
}
