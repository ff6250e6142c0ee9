// Package credentials owns password accounts: creating them and checking
// sign-ins against the stored hash.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth/policy"
	"ecotrack/internal/db"
	"ecotrack/internal/logger"
)

type Service struct {
	db     *db.DB
	hasher Hasher
}

func NewService(db *db.DB, hasher Hasher) *Service {
	return &Service{db: db, hasher: hasher}
}

// stored is a credentials row joined with its user.
type stored struct {
	userID string
	hash   string
	scheme string
}

// Register creates a password account and returns its user id. The new
// user has an empty display name and photo until the profile is filled in.
// Any existing user with the address, password or federated, makes the
// email unavailable: a password is never attached to someone else's user.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email = policy.NormalizeEmail(email)
	if err := policy.ValidateEmail(email); err != nil {
		return "", err
	}
	if err := policy.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, scheme, err := s.hasher.Hash(password)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeWeakPassword, "password cannot be used", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("credentials: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, email_verified)
		VALUES ($1, false)
		ON CONFLICT ((LOWER(email))) DO NOTHING
		RETURNING id
	`, email).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrEmailAlreadyInUse
	}
	if err != nil {
		return "", fmt.Errorf("credentials: create user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
	`, userID, hash, scheme); err != nil {
		return "", fmt.Errorf("credentials: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("credentials: commit: %w", err)
	}
	return userID.String(), nil
}

// Authenticate checks a password sign-in and returns the user id.
// Unknown accounts and wrong passwords are distinct failures. A match
// against an outdated hash is rehashed in place.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = policy.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", apperrors.ErrInvalidCredentialsFormat
	}

	var cred stored
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, c.password_hash, c.hash_version
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`, email).Scan(&cred.userID, &cred.hash, &cred.scheme)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credentials: lookup: %w", err)
	}

	stale, err := s.hasher.Verify(cred.hash, cred.scheme, password)
	if errors.Is(err, errMismatch) {
		return "", apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if stale {
		s.rehash(ctx, cred.userID, password)
	}
	return cred.userID, nil
}

// rehash is best effort; the sign-in already succeeded.
func (s *Service) rehash(ctx context.Context, userID, password string) {
	hash, scheme, err := s.hasher.Hash(password)
	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE credentials
			SET password_hash = $2, hash_version = $3, updated_at = NOW()
			WHERE user_id = $1
		`, userID, hash, scheme)
	}
	if err != nil {
		logger.Warn("password rehash failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}
