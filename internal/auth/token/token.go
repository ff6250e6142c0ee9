// Package token issues and verifies the bearer tokens handed to clients.
// A token names a server session; revoking the session revokes the token
// even before it expires.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
)

// Claims captures validated token claims.
type Claims struct {
	UserID    string
	SessionID string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// accessClaims is the internal claims type used for JWT parsing.
type accessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	Email     string `json:"email"`
}

type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer signs with HS256 using secret. now may be nil.
func NewIssuer(secret, issuer string, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, now: now}
}

// Issue signs a token for the identity bound to sessionID.
func (i *Issuer) Issue(identity *auth.Identity, sessionID string, expiresAt time.Time) (string, error) {
	if identity == nil || identity.ID == "" || sessionID == "" {
		return "", errors.New("token: identity and session are required")
	}
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		Email:     identity.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry. Every rejection is a
// NOT_AUTHENTICATED failure.
func (i *Issuer) Verify(raw string) (Claims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeNotAuthenticated, "invalid or expired token", err)
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return Claims{}, apperrors.New(apperrors.CodeNotAuthenticated, "token is missing required claims")
	}

	out := Claims{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Email:     claims.Email,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
