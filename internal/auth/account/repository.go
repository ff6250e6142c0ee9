// Package account reads and edits the profile side of a user record.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/db"
)

// ProfileFields carries a partial profile edit. Nil fields stay unchanged.
type ProfileFields struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

// Empty reports whether the edit changes nothing.
func (f ProfileFields) Empty() bool {
	return f.DisplayName == nil && f.PhotoURL == nil
}

type Repository struct {
	db *db.DB
}

func NewRepository(db *db.DB) *Repository {
	return &Repository{db: db}
}

// Get loads the identity for a user id.
func (r *Repository) Get(ctx context.Context, userID string) (*auth.Identity, error) {
	var (
		id  auth.Identity
		raw string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.display_name, u.photo_url, u.created_at, u.last_sign_in_at,
		       COALESCE((SELECT provider FROM identities i WHERE i.user_id = u.id
		                 ORDER BY i.created_at LIMIT 1), 'password')
		FROM users u
		WHERE u.id = $1
	`, userID).Scan(&raw, &id.Email, &id.DisplayName, &id.PhotoURL, &id.CreatedAt, &id.LastSignInAt, &id.Provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "account not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("account: get: %w", err)
	}
	id.ID = raw
	return &id, nil
}

// UpdateProfile applies the non-nil fields and returns the new identity.
func (r *Repository) UpdateProfile(ctx context.Context, userID string, fields ProfileFields) (*auth.Identity, error) {
	if !fields.Empty() {
		res, err := r.db.ExecContext(ctx, `
			UPDATE users
			SET display_name = COALESCE($2, display_name),
			    photo_url    = COALESCE($3, photo_url),
			    updated_at   = NOW()
			WHERE id = $1
		`, userID, nullable(fields.DisplayName), nullable(fields.PhotoURL))
		if err != nil {
			return nil, fmt.Errorf("account: update profile: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, apperrors.New(apperrors.CodeNotFound, "account not found")
		}
	}
	return r.Get(ctx, userID)
}

// TouchSignIn records a successful sign-in.
func (r *Repository) TouchSignIn(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_sign_in_at = NOW() WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("account: touch sign-in: %w", err)
	}
	return nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
