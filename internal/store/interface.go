package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
)

type AttemptStore interface {
	Close() error

	EnsureTable(ctx context.Context) error
	InsertBatch(ctx context.Context, attempts []models.Attempt) BatchResult
	ReportStats(ctx context.Context) (models.ReportStats, error)
}

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func ValidTableName(name string) bool {
	return tableNameRegex.MatchString(name)
}

// createTableSQL is written for Postgres; dialect stores translate it.
const createTableSQL = `
	CREATE TABLE IF NOT EXISTS %s (
		id SERIAL PRIMARY KEY,
		user_id character varying(50) NOT NULL,
		oauth_consumer_key character varying(20),
		lis_result_sourcedid character varying(255) NOT NULL,
		lis_outcome_service_url character varying(255) NOT NULL,
		is_correct int,
		attempt_type character varying(10) NOT NULL,
		created_at TIMESTAMP WITHOUT TIME ZONE NOT NULL
	)
`

func CreateTableSQL(table string) string {
	return fmt.Sprintf(createTableSQL, table)
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
	Table     string
	Log       *zap.SugaredLogger

	// TableExistsQuery takes the table name as its only parameter.
	TableExistsQuery string
	TranslateDDL     func(string) string
}

func (s *BaseStore) logger() *zap.SugaredLogger {
	if s.Log == nil {
		return zap.NewNop().Sugar()
	}
	return s.Log
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *BaseStore) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	if err := s.DB.GetContext(ctx, &exists, s.Converter(s.TableExistsQuery), s.Table); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", s.Table, err)
	}
	return exists, nil
}

// EnsureTable creates the attempts table unless it is already there.
func (s *BaseStore) EnsureTable(ctx context.Context) error {
	exists, err := s.TableExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		s.logger().Infof("Table '%s' already exists. Skipping table creation.", s.Table)
		return nil
	}

	s.logger().Infof("Table '%s' does not exist. Creating table.", s.Table)
	ddl := CreateTableSQL(s.Table)
	if s.TranslateDDL != nil {
		ddl = s.TranslateDDL(ddl)
	}
	if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.Table, err)
	}
	s.logger().Infof("Table '%s' created successfully.", s.Table)
	return nil
}

func (s *BaseStore) insertSQL() string {
	return fmt.Sprintf(`
		INSERT INTO %s (
			user_id, oauth_consumer_key, lis_result_sourcedid,
			lis_outcome_service_url, is_correct, attempt_type, created_at
		) VALUES (
			:user_id, :oauth_consumer_key, :lis_result_sourcedid,
			:lis_outcome_service_url, :is_correct, :attempt_type, :created_at
		)
	`, s.Table)
}

// InsertAttempt writes one row in its own transaction.
func (s *BaseStore) InsertAttempt(ctx context.Context, attempt *models.Attempt) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, s.insertSQL(), attempt); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger().Errorf("Rollback failed: %v", rbErr)
		}
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit attempt: %w", err)
	}
	return nil
}

// InsertBatch commits row by row: a failing row is logged and skipped and
// never undoes rows committed before it.
func (s *BaseStore) InsertBatch(ctx context.Context, attempts []models.Attempt) BatchResult {
	var res BatchResult
	for i := range attempts {
		if err := s.InsertAttempt(ctx, &attempts[i]); err != nil {
			s.logger().Errorf("Database error inserting line: %v for data: %s", err, attempts[i])
			res.Skipped++
			continue
		}
		res.Inserted++
	}
	s.logger().Infof("Data insertion complete: %d lines inserted, %d lines skipped.", res.Inserted, res.Skipped)
	return res
}

// ReportStats runs the three report counts over the whole table. Any failed
// query fails the whole report.
func (s *BaseStore) ReportStats(ctx context.Context) (models.ReportStats, error) {
	var stats models.ReportStats

	query := s.Converter(fmt.Sprintf(`
		SELECT COUNT(attempt_type) FROM %s
		WHERE attempt_type = ?
	`, s.Table))
	if err := s.DB.GetContext(ctx, &stats.Attempts, query, models.AttemptTypeSubmit); err != nil {
		return models.ReportStats{}, fmt.Errorf("failed to count attempts: %w", err)
	}

	query = s.Converter(fmt.Sprintf(`
		SELECT COUNT(attempt_type) FROM %s
		WHERE attempt_type = ?
		AND is_correct = 1
	`, s.Table))
	if err := s.DB.GetContext(ctx, &stats.Successful, query, models.AttemptTypeSubmit); err != nil {
		return models.ReportStats{}, fmt.Errorf("failed to count successful attempts: %w", err)
	}

	query = fmt.Sprintf(`SELECT COUNT(DISTINCT user_id) FROM %s`, s.Table)
	if err := s.DB.GetContext(ctx, &stats.DistinctUsers, query); err != nil {
		return models.ReportStats{}, fmt.Errorf("failed to count distinct users: %w", err)
	}

	return stats, nil
}

func (s *BaseStore) ListAttempts(ctx context.Context) ([]models.StoredAttempt, error) {
	var attempts []models.StoredAttempt
	query := fmt.Sprintf(`
		SELECT
			id,
			user_id,
			oauth_consumer_key,
			lis_result_sourcedid,
			lis_outcome_service_url,
			is_correct,
			attempt_type,
			created_at
		FROM %s
		ORDER BY id ASC
	`, s.Table)

	if err := s.DB.SelectContext(ctx, &attempts, query); err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}
