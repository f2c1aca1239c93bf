// internal/store/sqlite/store_test.go
package sqlite

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
	"github.com/shrimpsizemoose/attemptlog/internal/store"
)

// setupTestDB creates an in-memory SQLite database with the attempts table
func setupTestDB(t *testing.T) (*SQLiteStore, *observer.ObservedLogs, func()) {
	core, logs := observer.New(zapcore.InfoLevel)

	s, err := NewSQLiteStore(&store.DBConfig{DSN: ":memory:"}, zap.New(core).Sugar())
	require.NoError(t, err, "Failed to create store")

	require.NoError(t, s.EnsureTable(context.Background()), "Failed to create schema")

	cleanup := func() {
		err := s.Close()
		require.NoError(t, err, "Failed to close database")
	}

	return s, logs, cleanup
}

func strPtr(s string) *string {
	return &s
}

func intPtr(n int64) *int64 {
	return &n
}

func attempt(user, attemptType string, isCorrect *int64) models.Attempt {
	return models.Attempt{
		UserID:               strPtr(user),
		OAuthConsumerKey:     strPtr("k1"),
		LisResultSourcedID:   strPtr("s-" + user),
		LisOutcomeServiceURL: strPtr("http://x"),
		IsCorrect:            isCorrect,
		AttemptType:          strPtr(attemptType),
		CreatedAt:            strPtr("2023-04-01 12:50:00"),
	}
}

func TestMain(m *testing.M) {
	log.Println("Starting SQLite store tests...")
	code := m.Run()
	log.Println("Finished SQLite store tests")
	os.Exit(code)
}

func TestEnsureTableIsIdempotent(t *testing.T) {
	s, logs, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	res := s.InsertBatch(ctx, []models.Attempt{attempt("u1", "submit", intPtr(1))})
	require.Equal(t, 1, res.Inserted)

	require.NoError(t, s.EnsureTable(ctx))
	require.NoError(t, s.EnsureTable(ctx))

	rows, err := s.ListAttempts(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	assert.Equal(t, 2, logs.FilterMessageSnippet("already exists").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("created successfully").Len())
}

func TestEnsureTableCustomName(t *testing.T) {
	s, err := NewSQLiteStore(&store.DBConfig{DSN: "sqlite://:memory:", Table: "lti_attempts"}, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	exists, err := s.TableExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.EnsureTable(ctx))

	exists, err = s.TableExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInvalidTableName(t *testing.T) {
	_, err := NewSQLiteStore(&store.DBConfig{DSN: ":memory:", Table: "data; DROP TABLE x"}, nil)
	assert.Error(t, err)
}

func TestInsertRunAttempt(t *testing.T) {
	s, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	res := s.InsertBatch(ctx, []models.Attempt{attempt("u1", "run", nil)})
	assert.Equal(t, store.BatchResult{Inserted: 1}, res)

	rows, err := s.ListAttempts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := rows[0]
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "u1", *got.UserID)
	assert.Equal(t, "k1", *got.OAuthConsumerKey)
	assert.Nil(t, got.IsCorrect)
	assert.Equal(t, "run", *got.AttemptType)
	assert.Equal(t, "2023-04-01 12:50:00", *got.CreatedAt)
}

func TestInsertBatchSkipsIncompleteRows(t *testing.T) {
	s, logs, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	noUser := attempt("x", "submit", intPtr(1))
	noUser.UserID = nil
	noSourcedID := attempt("u2", "submit", intPtr(1))
	noSourcedID.LisResultSourcedID = nil
	noURL := attempt("u3", "submit", intPtr(0))
	noURL.LisOutcomeServiceURL = nil
	noType := attempt("u4", "submit", nil)
	noType.AttemptType = nil
	noCreated := attempt("u5", "run", nil)
	noCreated.CreatedAt = nil
	noConsumerKey := attempt("u6", "submit", intPtr(1))
	noConsumerKey.OAuthConsumerKey = nil

	batch := []models.Attempt{
		attempt("u1", "submit", intPtr(1)),
		noUser,
		noSourcedID,
		noURL,
		noType,
		noCreated,
		noConsumerKey,
		attempt("u7", "run", nil),
	}

	res := s.InsertBatch(ctx, batch)
	assert.Equal(t, store.BatchResult{Inserted: 3, Skipped: 5}, res)

	rows, err := s.ListAttempts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "u1", *rows[0].UserID)
	assert.Equal(t, "u6", *rows[1].UserID)
	assert.Nil(t, rows[1].OAuthConsumerKey)
	assert.Equal(t, "u7", *rows[2].UserID)

	skipped := logs.FilterMessageSnippet("Database error inserting line").All()
	require.Len(t, skipped, 5)
	assert.Contains(t, skipped[0].Message, "user_id=NULL")
	assert.Equal(t, 1, logs.FilterMessageSnippet("3 lines inserted, 5 lines skipped").Len())
}

func TestReportStats(t *testing.T) {
	s, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	// 10 submits, 4 of them correct, spread over 6 users, plus runs by the same users
	var batch []models.Attempt
	for i := 0; i < 10; i++ {
		var correct *int64
		switch {
		case i < 4:
			correct = intPtr(1)
		case i < 7:
			correct = intPtr(0)
		}
		batch = append(batch, attempt(fmt.Sprintf("u%d", i%6), "submit", correct))
	}
	for i := 0; i < 5; i++ {
		batch = append(batch, attempt(fmt.Sprintf("u%d", i), "run", nil))
	}

	res := s.InsertBatch(ctx, batch)
	require.Equal(t, 15, res.Inserted)

	stats, err := s.ReportStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStats{Attempts: 10, Successful: 4, DistinctUsers: 6}, stats)
}

func TestReportStatsEmptyTable(t *testing.T) {
	s, _, cleanup := setupTestDB(t)
	defer cleanup()

	stats, err := s.ReportStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ReportStats{}, stats)
}

func TestReportStatsWithoutTable(t *testing.T) {
	s, err := NewSQLiteStore(&store.DBConfig{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	defer s.Close()

	stats, err := s.ReportStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ReportStats{}, stats)
}

func TestTranslateToSQLite(t *testing.T) {
	ddl := translateToSQLite(store.CreateTableSQL("data"))
	assert.Contains(t, ddl, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.NotContains(t, ddl, "SERIAL")
	assert.Contains(t, ddl, "user_id character varying(50) NOT NULL")
	assert.Equal(t,
		strings.Replace(store.CreateTableSQL("data"), "SERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT", 1),
		ddl,
		"only the primary key differs between dialects",
	)
}
