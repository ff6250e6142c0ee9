package db

import (
	"context"
	"database/sql"
	"fmt"

	"ecotrack/internal/logger"
)

// migrationLock is the advisory lock key held while migrating, so two
// replicas starting together apply each step once.
const migrationLock = 0x65636f74

// migrations are applied in order. Never edit a released step; append.
var migrations = []string{
	// 1: accounts
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";

	CREATE TABLE users (
		id              uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		email           text NOT NULL,
		email_verified  boolean NOT NULL DEFAULT false,
		display_name    text NOT NULL DEFAULT '',
		photo_url       text NOT NULL DEFAULT '',
		created_at      timestamptz NOT NULL DEFAULT NOW(),
		updated_at      timestamptz NOT NULL DEFAULT NOW(),
		last_sign_in_at timestamptz NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX users_email_lower_unique ON users (LOWER(email));`,

	// 2: federated identities linked to a user
	`CREATE TABLE identities (
		id               uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id          uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		provider         text NOT NULL,
		provider_user_id text NOT NULL,
		created_at       timestamptz NOT NULL DEFAULT NOW(),
		UNIQUE (provider, provider_user_id)
	);
	CREATE INDEX identities_user_id_idx ON identities (user_id);`,

	// 3: password credentials, at most one per user
	`CREATE TABLE credentials (
		user_id       uuid PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		password_hash text NOT NULL,
		hash_version  text NOT NULL,
		created_at    timestamptz NOT NULL DEFAULT NOW(),
		updated_at    timestamptz NOT NULL DEFAULT NOW()
	);`,
}

// Migrate brings the schema up to date. Each step runs in its own
// transaction together with its version row.
func Migrate(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLock); err != nil {
		return fmt.Errorf("db: migrate lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLock)
	}()

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    int PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}

	var current int
	if err := conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("db: migrate version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		if err := applyMigration(ctx, conn, version, migrations[i]); err != nil {
			return err
		}
		logger.Info("migration applied", map[string]any{"version": version})
	}
	return nil
}

func applyMigration(ctx context.Context, conn *sql.Conn, version int, stmt string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: migration %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("db: migration %d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("db: migration %d: %w", version, err)
	}
	return tx.Commit()
}
