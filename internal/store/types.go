package store

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

const DefaultTable = "data"

type DBConfig struct {
	DSN   string
	Type  DatabaseType
	Table string
}

// BatchResult counts what InsertBatch did with a batch.
type BatchResult struct {
	Inserted int
	Skipped  int
}
