package handler

import (
	"net/http"

	"ecotrack/internal/logger"
	"ecotrack/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Logout revokes the caller's session. It always answers 204: a missing,
// stale, or already revoked token is a successful sign-out too.
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	raw := middleware.BearerToken(c.Request)
	if raw == "" {
		c.Status(http.StatusNoContent)
		return
	}

	claims, err := h.tokens.Verify(raw)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}

	// best-effort: the session expires on its own anyway
	if err := h.sessions.Delete(ctx, claims.SessionID); err != nil {
		logger.Warn("failed to delete session", map[string]any{
			"sid":   claims.SessionID,
			"error": err.Error(),
		})
	}
	if err := h.feed.PublishSession(ctx, claims.SessionID, nil); err != nil {
		logger.Warn("failed to publish sign-out", map[string]any{
			"sid":   claims.SessionID,
			"error": err.Error(),
		})
	}

	logger.Info("session ended", map[string]any{
		"user_id": claims.UserID,
		"sid":     claims.SessionID,
		"ip":      c.ClientIP(),
	})

	c.Status(http.StatusNoContent)
}
