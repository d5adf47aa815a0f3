package database

import (
	"github.com/fixturesnap/fixturesnap/internal/database/mysql"
	"github.com/fixturesnap/fixturesnap/internal/database/postgres"
	"github.com/fixturesnap/fixturesnap/internal/database/sqlite"
)

func New(provider string) Adapter {
	switch provider {
	case "postgresql", "postgres":
		return postgres.New()
	case "mysql":
		return mysql.New()
	case "sqlite", "sqlite3":
		return sqlite.New()
	default:
		return postgres.New()
	}
}
