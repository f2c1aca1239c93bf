// internal/store/sqlite/store.go
package sqlite

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/store"
)

const tableExistsQuery = `
	SELECT EXISTS (
		SELECT 1
		FROM sqlite_master
		WHERE type = 'table'
		AND name = ?
	)
`

type SQLiteStore struct {
	store.BaseStore
}

func NewSQLiteStore(config *store.DBConfig, log *zap.SugaredLogger) (*SQLiteStore, error) {
	table := config.Table
	if table == "" {
		table = store.DefaultTable
	}
	if !store.ValidTableName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sqlx.Connect("sqlite3", strings.TrimPrefix(config.DSN, "sqlite://"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	return &SQLiteStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			return query
		},
		Table:            table,
		Log:              log,
		TableExistsQuery: tableExistsQuery,
		TranslateDDL:     translateToSQLite,
	}}, nil
}

// translateToSQLite converts Postgres SQL to SQLite dialect
func translateToSQLite(sql string) string {
	replacements := []struct{ from, to string }{
		{"BIGSERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT"},
		{"SERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT"},
	}
	result := sql
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r.from, r.to)
	}
	return result
}
