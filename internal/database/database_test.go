package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jcob-sikorski/mech-mashup/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func stubConnect(t *testing.T, fn func(ctx context.Context, driver, dsn string) (*sqlx.DB, error)) {
	t.Helper()
	orig := connect
	connect = fn
	t.Cleanup(func() { connect = orig })
}

func TestConnectDB_RetriesUntilSuccess(t *testing.T) {
	db, _ := newMockDB(t)

	attempts := 0
	stubConnect(t, func(_ context.Context, driver, dsn string) (*sqlx.DB, error) {
		attempts++
		assert.Equal(t, "postgres", driver)
		assert.Equal(t, "postgres://localhost/mech", dsn)
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		return db, nil
	})

	got, err := ConnectDB(context.Background(), config.DatabaseConfig{
		URL:            "postgres://localhost/mech",
		MaxOpenConns:   7,
		ConnectRetries: 5,
		RetryDelay:     time.Millisecond,
	})
	require.NoError(t, err)
	assert.Same(t, db, got)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 7, got.Stats().MaxOpenConnections)
}

func TestConnectDB_GivesUp(t *testing.T) {
	attempts := 0
	stubConnect(t, func(context.Context, string, string) (*sqlx.DB, error) {
		attempts++
		return nil, errors.New("connection refused")
	})

	_, err := ConnectDB(context.Background(), config.DatabaseConfig{
		ConnectRetries: 2,
		RetryDelay:     time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 2, attempts)
}

func TestConnectDB_StopsOnContextCancel(t *testing.T) {
	stubConnect(t, func(context.Context, string, string) (*sqlx.DB, error) {
		return nil, errors.New("connection refused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConnectDB(ctx, config.DatabaseConfig{ConnectRetries: 10, RetryDelay: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunMigrations(t *testing.T) {
	db, _ := newMockDB(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))
	assert.Equal(t, "migrations", gotDir)

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	err := RunMigrations(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"00001_create_users.sql", "00002_create_token_blacklist.sql"}, names)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE users SET is_staff = TRUE")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := WithTx(context.Background(), db, nil, func(context.Context, *sqlx.Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = WithTx(context.Background(), db, nil, func(context.Context, *sqlx.Tx) error {
			panic("kaboom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}
