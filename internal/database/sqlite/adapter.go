package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

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

func (s *Adapter) Connect(ctx context.Context, url string) error {
	path := strings.TrimPrefix(url, "sqlite://")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	s.db = db
	return nil
}

func (s *Adapter) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Adapter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Adapter) DB() *sql.DB {
	return s.db
}

func (s *Adapter) AllTableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
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

func (s *Adapter) TableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(tableName)))
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []types.SchemaColumn
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, types.SchemaColumn{
			Name:      name,
			Type:      strings.ToLower(colType),
			Nullable:  notNull == 0,
			IsPrimary: pk > 0,
		})
	}
	return columns, rows.Err()
}

func (s *Adapter) TableRows(ctx context.Context, table types.SchemaTable) ([]types.Row, error) {
	cols := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		cols[i] = quote(col.Name)
	}

	query := s.qb.Select(cols...).From(quote(table.Name))
	if pk := common.PrimaryKey(table); pk != "" {
		query = query.OrderBy(quote(pk))
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query for %s: %w", table.Name, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table.Name, err)
	}
	defer rows.Close()

	return common.ScanRows(rows)
}

func (s *Adapter) DeleteAllRows(ctx context.Context, tableName string) error {
	sqlStr, args, err := s.qb.Delete(quote(tableName)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete for %s: %w", tableName, err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to delete rows from %s: %w", tableName, err)
	}
	return nil
}

func (s *Adapter) SuspendReferentialIntegrity(ctx context.Context) (func() error, error) {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return nil, fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	return func() error {
		_, err := s.db.ExecContext(context.Background(), "PRAGMA foreign_keys = ON")
		return err
	}, nil
}

func quote(identifier string) string {
	return `"` + identifier + `"`
}
