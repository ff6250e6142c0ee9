package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth/token"
	"ecotrack/internal/session"
)

// Principal is the caller a verified bearer token names.
type Principal struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// unexported, collision-proof context key
type principalContextKeyType struct{}

var principalKey = principalContextKeyType{}

// PrincipalFromContext extracts the authenticated caller from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(raw)
}

type TokenVerifier interface {
	Verify(raw string) (token.Claims, error)
}

type AuthMiddleware struct {
	Tokens TokenVerifier
	Store  session.Store
	Now    func() time.Time
}

func NewAuthMiddleware(tokens TokenVerifier, store session.Store) *AuthMiddleware {
	return &AuthMiddleware{Tokens: tokens, Store: store, Now: time.Now}
}

// Authenticate resolves the principal for r. A valid signature is not
// enough: the session the token names must still exist and be unexpired.
func (a *AuthMiddleware) Authenticate(r *http.Request) (Principal, error) {
	raw := BearerToken(r)
	if raw == "" {
		return Principal{}, apperrors.ErrNotAuthenticated
	}

	claims, err := a.Tokens.Verify(raw)
	if err != nil {
		return Principal{}, err
	}

	sess, err := a.Store.Get(r.Context(), claims.SessionID)
	if err != nil {
		return Principal{}, err
	}
	if sess == nil || sess.UserID != claims.UserID {
		return Principal{}, apperrors.New(apperrors.CodeNotAuthenticated, "session revoked")
	}

	if sess.Expired(a.now()) {
		_ = a.Store.Delete(r.Context(), sess.SessionID)
		return Principal{}, apperrors.New(apperrors.CodeNotAuthenticated, "session expired")
	}

	return Principal{
		UserID:    sess.UserID,
		SessionID: sess.SessionID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r)
		if err != nil {
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (a *AuthMiddleware) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	code := apperrors.CodeNotAuthenticated
	msg := "not signed in"
	if apperrors.CodeOf(err) == apperrors.CodeNotAuthenticated {
		msg = apperrors.PublicMessage(err)
	} else if apperrors.CodeOf(err) == apperrors.CodeUnknown {
		// store outage, not a credential problem
		status = http.StatusInternalServerError
		code = apperrors.CodeUnknown
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  string(code),
	})
}
