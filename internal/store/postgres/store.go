package postgres

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/store"
)

const tableExistsQuery = `
	SELECT EXISTS (
		SELECT 1
		FROM pg_tables
		WHERE tablename = ?
		AND schemaname = current_schema()
	)
`

type PostgresStore struct {
	store.BaseStore
}

func NewPostgresStore(config *store.DBConfig, log *zap.SugaredLogger) (*PostgresStore, error) {
	table := config.Table
	if table == "" {
		table = store.DefaultTable
	}
	if !store.ValidTableName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sqlx.Connect("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresStore{BaseStore: store.BaseStore{
		DB:               db,
		Converter:        convertPlaceholders,
		Table:            table,
		Log:              log,
		TableExistsQuery: tableExistsQuery,
	}}, nil
}

// convertPlaceholders rewrites ? placeholders into $1, $2, ...
func convertPlaceholders(query string) string {
	out := query
	for i := 1; strings.Contains(out, "?"); i++ {
		out = strings.Replace(out, "?", fmt.Sprintf("$%d", i), 1)
	}
	return out
}
