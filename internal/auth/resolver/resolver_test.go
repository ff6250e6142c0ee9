package resolver

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/db"
)

const existingID = "0b5c7d1e-3a2f-4e6b-8c9d-1f2a3b4c5d6e"

func newTestResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return New(&db.DB{DB: sqlDB}), mock
}

func googleIdentity(verified bool) *auth.ProviderIdentity {
	return &auth.ProviderIdentity{
		Provider:       "google",
		ProviderUserID: "g-123",
		Email:          "jane@example.com",
		EmailVerified:  verified,
		Name:           "Jane",
		Picture:        "https://img/jane.png",
	}
}

func expectNoLink(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT user_id FROM identities").
		WithArgs("google", "g-123").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
}

func TestResolveKnownLink(t *testing.T) {
	t.Parallel()
	r, mock := newTestResolver(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id FROM identities").
		WithArgs("google", "g-123").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(existingID))
	mock.ExpectCommit()

	id, err := r.Resolve(context.Background(), googleIdentity(false))
	require.NoError(t, err)
	assert.Equal(t, existingID, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCreatesUnknownEmail(t *testing.T) {
	t.Parallel()
	r, mock := newTestResolver(t)

	mock.ExpectBegin()
	expectNoLink(mock)
	mock.ExpectQuery("SELECT id, email_verified FROM users").
		WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email_verified"}))
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("jane@example.com", true, "Jane", "https://img/jane.png").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(existingID))
	mock.ExpectExec("INSERT INTO identities").
		WithArgs(existingID, "google", "g-123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := r.Resolve(context.Background(), googleIdentity(true))
	require.NoError(t, err)
	assert.Equal(t, existingID, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveLinksVerifiedEmails(t *testing.T) {
	t.Parallel()
	r, mock := newTestResolver(t)

	mock.ExpectBegin()
	expectNoLink(mock)
	mock.ExpectQuery("SELECT id, email_verified FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email_verified"}).AddRow(existingID, true))
	mock.ExpectExec("UPDATE users").
		WithArgs(existingID, "Jane", "https://img/jane.png").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO identities").
		WithArgs(existingID, "google", "g-123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := r.Resolve(context.Background(), googleIdentity(true))
	require.NoError(t, err)
	assert.Equal(t, existingID, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveRefusesToMergeUnprovenMailboxes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		providerVerified bool
		accountVerified  bool
	}{
		{name: "provider did not verify the email", providerVerified: false, accountVerified: true},
		{name: "existing password account never verified", providerVerified: true, accountVerified: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, mock := newTestResolver(t)

			mock.ExpectBegin()
			expectNoLink(mock)
			mock.ExpectQuery("SELECT id, email_verified FROM users").
				WillReturnRows(sqlmock.NewRows([]string{"id", "email_verified"}).AddRow(existingID, tt.accountVerified))
			mock.ExpectRollback()

			_, err := r.Resolve(context.Background(), googleIdentity(tt.providerVerified))
			require.ErrorIs(t, err, apperrors.ErrEmailAlreadyInUse)
			require.NoError(t, mock.ExpectationsWereMet(), "nothing may be linked")
		})
	}
}

func TestResolveRejectsIncompleteIdentity(t *testing.T) {
	t.Parallel()
	r, mock := newTestResolver(t)

	_, err := r.Resolve(context.Background(), &auth.ProviderIdentity{Provider: "google", ProviderUserID: "g-1"})
	assert.ErrorIs(t, err, apperrors.ErrProviderError)
	_, err = r.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrProviderError)
	require.NoError(t, mock.ExpectationsWereMet())
}
