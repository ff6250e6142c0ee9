// Package resolver maps an external provider identity to an EcoTrack
// user, creating or linking the user as needed.
package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/db"
	"ecotrack/internal/logger"
)

type Resolver struct {
	db *db.DB
}

func New(db *db.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the user id for identity. A known (provider, subject)
// pair wins. Otherwise a verified email links to the existing user with
// that address, and an unknown email creates a user seeded from the
// provider's name and picture. A user whose own address was never
// verified, such as a password account, is not linked either.
func (r *Resolver) Resolve(ctx context.Context, identity *auth.ProviderIdentity) (string, error) {
	if identity == nil || identity.ProviderUserID == "" || identity.Email == "" {
		return "", apperrors.New(apperrors.CodeProviderError, "provider returned an incomplete identity")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("resolver: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	userID, err := lookupLinked(ctx, tx, identity)
	if errors.Is(err, sql.ErrNoRows) {
		userID, err = linkOrCreate(ctx, tx, identity)
	}
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("resolver: commit: %w", err)
	}
	return userID.String(), nil
}

func lookupLinked(ctx context.Context, tx *sql.Tx, identity *auth.ProviderIdentity) (uuid.UUID, error) {
	var userID uuid.UUID
	err := tx.QueryRowContext(ctx, `
		SELECT user_id FROM identities
		WHERE provider = $1 AND provider_user_id = $2
	`, identity.Provider, identity.ProviderUserID).Scan(&userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("resolver: identity lookup: %w", err)
	}
	return userID, err
}

func linkOrCreate(ctx context.Context, tx *sql.Tx, identity *auth.ProviderIdentity) (uuid.UUID, error) {
	var (
		userID   uuid.UUID
		verified bool
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, email_verified FROM users WHERE LOWER(email) = LOWER($1)
	`, identity.Email).Scan(&userID, &verified)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = tx.QueryRowContext(ctx, `
			INSERT INTO users (email, email_verified, display_name, photo_url)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, identity.Email, identity.EmailVerified, identity.Name, identity.Picture).Scan(&userID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("resolver: create user: %w", err)
		}

	case err != nil:
		return uuid.Nil, fmt.Errorf("resolver: email lookup: %w", err)

	case !identity.EmailVerified, !verified:
		// Both sides must have proven the mailbox before they are merged.
		return uuid.Nil, apperrors.New(apperrors.CodeEmailAlreadyInUse,
			"an account with this email exists; sign in the way you did before")

	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET display_name = CASE WHEN display_name = '' THEN $2 ELSE display_name END,
			    photo_url    = CASE WHEN photo_url = '' THEN $3 ELSE photo_url END,
			    updated_at   = NOW()
			WHERE id = $1
		`, userID, identity.Name, identity.Picture)
		if err != nil {
			return uuid.Nil, fmt.Errorf("resolver: fill profile: %w", err)
		}
		logger.Info("linked provider to existing account", map[string]any{
			"user_id":  userID.String(),
			"provider": identity.Provider,
		})
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (user_id, provider, provider_user_id)
		VALUES ($1, $2, $3)
	`, userID, identity.Provider, identity.ProviderUserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolver: link identity: %w", err)
	}
	return userID, nil
}

