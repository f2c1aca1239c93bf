package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/store"
	"github.com/shrimpsizemoose/attemptlog/internal/store/postgres"
	"github.com/shrimpsizemoose/attemptlog/internal/store/sqlite"
)

func DetectDBType(dsn string) store.DatabaseType {
	switch {
	case strings.HasPrefix(dsn, "sqlite"),
		strings.HasPrefix(dsn, "file:"),
		strings.HasPrefix(dsn, ":memory:"),
		strings.HasSuffix(dsn, ".db"),
		strings.HasSuffix(dsn, ".sqlite"):
		return store.DBTypeSQLite
	default:
		return store.DBTypePostgres
	}
}

// NewStore opens a new connection for one unit of work; the caller closes it.
func NewStore(cfg *DatabaseConfig, log *zap.SugaredLogger) (store.AttemptStore, error) {
	dsn := cfg.ConnectionString()
	dbConfig := &store.DBConfig{
		DSN:   dsn,
		Type:  DetectDBType(dsn),
		Table: cfg.Table,
	}

	switch dbConfig.Type {
	case store.DBTypePostgres:
		s, err := postgres.NewPostgresStore(dbConfig, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case store.DBTypeSQLite:
		s, err := sqlite.NewSQLiteStore(dbConfig, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN")
	}
}
