package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing-backend/internal/config"
	"credentialing-backend/internal/metadata"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "store_test"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx, metadata.NewRegistry()))
	return s
}

func TestBootstrapCreatesAllTables(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	for _, e := range metadata.NewRegistry().AllEntities() {
		ok, err := s.Dialect.TableExists(ctx, s.DB, e.Table)
		require.NoError(t, err)
		assert.True(t, ok, e.Table)

		cols, err := s.Dialect.GetColumns(ctx, s.DB, e.Table)
		require.NoError(t, err)
		for _, c := range e.Columns() {
			assert.True(t, cols[c], "%s.%s", e.Table, c)
		}
	}
	for _, table := range []string{"_accounts", "_refresh_tokens", "_audit_outbox"} {
		ok, err := s.Dialect.TableExists(ctx, s.DB, table)
		require.NoError(t, err)
		assert.True(t, ok, table)
	}

	// bootstrapping twice is a no-op
	require.NoError(t, s.Bootstrap(ctx, metadata.NewRegistry()))
}

func TestMigrateAddsMissingColumns(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	extended := *metadata.Trainings
	extended.Fields = append(append([]metadata.Field{}, metadata.Trainings.Fields...),
		metadata.Field{Name: "accreditationBody", Type: "string"})

	require.NoError(t, NewMigrator(s).Migrate(ctx, &extended))
	cols, err := s.Dialect.GetColumns(ctx, s.DB, extended.Table)
	require.NoError(t, err)
	assert.True(t, cols["accreditation_body"])
}

func TestOwnerKeyIsUnique(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	now := s.Dialect.TimeParam(time.Now())

	insert := `INSERT INTO employees (owner_key, status, created_at, updated_at) VALUES (?1, ?2, ?3, ?3)`
	_, err := s.DB.ExecContext(ctx, insert, "owner-1", metadata.StatusInProgress, now)
	require.NoError(t, err)

	_, err = s.DB.ExecContext(ctx, insert, "owner-1", metadata.StatusInProgress, now)
	require.Error(t, err)
	assert.True(t, errors.Is(MapError(s.Dialect, err), ErrUniqueViolation))
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	now := s.Dialect.TimeParam(time.Now())
	boom := errors.New("boom")

	err := s.RunInTx(ctx, time.Second, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO employees (owner_key, status, created_at, updated_at) VALUES (?1, 'in_progress', ?2, ?2)`,
			"owner-rollback", now)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = QueryRow(ctx, s.DB, `SELECT id FROM employees WHERE owner_key = ?1`, "owner-rollback")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunInTxRefusesCancelledContext(t *testing.T) {
	s := openSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.RunInTx(ctx, time.Second, func(tx *sql.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestSavepointRollbackKeepsTransactionUsable(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	now := s.Dialect.TimeParam(time.Now())
	insert := `INSERT INTO employees (owner_key, status, created_at, updated_at) VALUES (?1, 'in_progress', ?2, ?2)`

	err := s.RunInTx(ctx, time.Second, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert, "owner-a", now); err != nil {
			return err
		}
		spErr := Savepoint(ctx, tx, "dup", func() error {
			_, err := tx.ExecContext(ctx, insert, "owner-a", now)
			return MapError(s.Dialect, err)
		})
		require.ErrorIs(t, spErr, ErrUniqueViolation)

		_, err := tx.ExecContext(ctx, insert, "owner-b", now)
		return err
	})
	require.NoError(t, err)

	rows, err := QueryRows(ctx, s.DB, `SELECT owner_key FROM employees ORDER BY owner_key`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "owner-a", rows[0]["owner_key"])
	assert.Equal(t, "owner-b", rows[1]["owner_key"])
}

func TestQueryRowsParsesStoredTimestamps(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO employees (owner_key, status, date_of_birth, created_at, updated_at) VALUES (?1, 'in_progress', ?2, ?3, ?3)`,
		"owner-ts", "1990-05-01", s.Dialect.TimeParam(at))
	require.NoError(t, err)

	row, err := QueryRow(ctx, s.DB, `SELECT date_of_birth, created_at FROM employees WHERE owner_key = ?1`, "owner-ts")
	require.NoError(t, err)
	assert.Equal(t, "1990-05-01", row["date_of_birth"])
	created, ok := row["created_at"].(time.Time)
	require.True(t, ok, "created_at scanned as %T", row["created_at"])
	assert.True(t, at.Equal(created))
}

func TestPostgresMapErrorRecognisesDuplicateKey(t *testing.T) {
	d := &PostgresDialect{}
	err := d.MapError(errors.New(`ERROR: duplicate key value violates unique constraint "employees_owner_key_key" (SQLSTATE 23505)`))
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NotErrorIs(t, d.MapError(errors.New("connection reset")), ErrUniqueViolation)
}

func TestToInt64(t *testing.T) {
	n, ok := ToInt64(int64(7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	_, ok = ToInt64(1.5)
	assert.False(t, ok)

	_, ok = ToInt64("7")
	assert.False(t, ok)
}

func TestQueryRowsKeepsTimestampLikeTextInTextColumns(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	bio := "2024-01-02T03:04:05Z"

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO employees (owner_key, status, bio, created_at, updated_at) VALUES (?1, 'in_progress', ?2, ?3, ?3)`,
		"owner-bio", bio, s.Dialect.TimeParam(at))
	require.NoError(t, err)

	row, err := QueryRow(ctx, s.DB, `SELECT bio, updated_at FROM employees WHERE owner_key = ?1`, "owner-bio")
	require.NoError(t, err)
	assert.Equal(t, bio, row["bio"])
	_, ok := row["updated_at"].(time.Time)
	assert.True(t, ok, "updated_at scanned as %T", row["updated_at"])
}
