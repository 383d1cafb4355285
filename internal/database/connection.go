package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jcob-sikorski/mech-mashup/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

// connect is replaced in tests.
var connect = sqlx.ConnectContext

// ConnectDB attempts to connect to the database with retries
func ConnectDB(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	maxRetries := cfg.ConnectRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		var db *sqlx.DB
		db, err = connect(ctx, "postgres", cfg.URL)
		if err == nil {
			logrus.Info("Successfully connected to database")
			db.SetMaxOpenConns(cfg.MaxOpenConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			return db, nil
		}
		logrus.WithError(err).Warnf("Failed to connect to database (attempt %d/%d)", i+1, maxRetries)

		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to database: %w", ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d retries: %w", maxRetries, err)
}
