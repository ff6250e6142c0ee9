// Package session keeps the server side of signed-in sessions. A token
// is only honoured while the session it names is still here.
package session

import (
	"context"
	"time"

	"ecotrack/internal/utils"
)

// idBytes gives session ids 256 bits of entropy.
const idBytes = 32

type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions until they expire or are deleted. Get returns
// (nil, nil) for an unknown id.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// NewID returns a fresh random session id.
func NewID() string {
	return utils.RandomString(idBytes)
}
