package database

import (
	"context"
	"database/sql"
	"fmt"

	"contest_tracker/internal/platform/logger"

	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		hashed_password TEXT NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'regular',
		rating INTEGER NOT NULL DEFAULT 0,
		participations INTEGER NOT NULL DEFAULT 0 CHECK (participations >= 0),
		solved INTEGER NOT NULL DEFAULT 0 CHECK (solved >= 0),
		avatar TEXT,
		is_privileged_display_account BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS contests (
		id UUID PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		slug VARCHAR(300) NOT NULL UNIQUE,
		platform VARCHAR(100) NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		duration VARCHAR(50),
		url TEXT,
		description TEXT,
		difficulty VARCHAR(50),
		icon VARCHAR(100),
		image_url TEXT,
		background VARCHAR(100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS contest_results (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		contest_id UUID NOT NULL REFERENCES contests(id) ON DELETE RESTRICT,
		rank INTEGER NOT NULL DEFAULT 0 CHECK (rank >= 0),
		solved INTEGER NOT NULL DEFAULT 0 CHECK (solved >= 0),
		rating_delta INTEGER NOT NULL DEFAULT 0,
		is_winner BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contest_results_user_created ON contest_results (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_contest_results_contest ON contest_results (contest_id)`,
	`CREATE INDEX IF NOT EXISTS idx_users_rating ON users (rating DESC, id)`,
}

// RunMigrations applies the idempotent schema statements in order.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	logger.L().Info("Running database migrations")
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	logger.L().Info("Database migrations completed", zap.Int("steps", len(schema)))
	return nil
}
