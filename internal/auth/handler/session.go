package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/auth/policy"
	"ecotrack/internal/logger"
	"ecotrack/internal/session"

	"github.com/gin-gonic/gin"
)

// signInResponse is the body of every successful sign-in.
type signInResponse struct {
	Token     string         `json:"token"`
	Identity  *auth.Identity `json:"identity"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// startSession creates a server session for userID and signs a token for it.
func (h *Handler) startSession(ctx context.Context, userID string) (signInResponse, error) {
	sessionID := session.NewID()
	now := h.now()
	expiresAt := now.Add(h.sessionTTL)

	if err := h.sessions.Create(ctx, session.Session{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}); err != nil {
		return signInResponse{}, fmt.Errorf("persist session: %w", err)
	}

	if err := h.accounts.TouchSignIn(ctx, userID); err != nil {
		logger.Warn("failed to record sign-in time", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	identity, err := h.accounts.Get(ctx, userID)
	if err != nil {
		_ = h.sessions.Delete(ctx, sessionID)
		return signInResponse{}, err
	}

	signed, err := h.tokens.Issue(identity, sessionID, expiresAt)
	if err != nil {
		_ = h.sessions.Delete(ctx, sessionID)
		return signInResponse{}, err
	}

	logger.Info("session started", map[string]any{
		"user_id": userID,
		"sid":     sessionID,
	})

	return signInResponse{Token: signed, Identity: identity, ExpiresAt: expiresAt}, nil
}

// attemptKey buckets attempts per operation and case-folded email.
func attemptKey(operation, email string) string {
	return operation + ":" + strings.ToLower(policy.NormalizeEmail(email))
}

// throttle counts an attempt against key. A limiter outage lets the
// attempt through.
func (h *Handler) throttle(c *gin.Context, key string) error {
	if h.limiter == nil {
		return nil
	}
	ok, err := h.limiter.Allow(c.Request.Context(), key)
	if err != nil {
		logger.Warn("rate limiter unavailable", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	if !ok {
		return apperrors.ErrRateLimited
	}
	return nil
}
