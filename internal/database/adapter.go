package database

import (
	"context"
	"database/sql"

	"github.com/fixturesnap/fixturesnap/internal/types"
)

// Adapter is the database surface the builder needs: schema introspection,
// full-table reads ordered by primary key, destructive cleanup with scoped
// referential-integrity suspension, and a raw handle for population code.
type Adapter interface {
	Connect(ctx context.Context, url string) error
	Close() error
	Ping(ctx context.Context) error

	// DB exposes the underlying handle for population code.
	DB() *sql.DB

	// Schema operations
	AllTableNames(ctx context.Context) ([]string, error)
	TableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error)

	// Dump operations
	TableRows(ctx context.Context, table types.SchemaTable) ([]types.Row, error)

	// Cleanup operations. SuspendReferentialIntegrity returns a restore func
	// that must run even when deletion fails partway.
	DeleteAllRows(ctx context.Context, tableName string) error
	SuspendReferentialIntegrity(ctx context.Context) (restore func() error, err error)
}
