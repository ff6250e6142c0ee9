package handler

import (
	"net/http"
	"time"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/auth/feed"
	"ecotrack/internal/logger"
	"ecotrack/internal/middleware"

	"github.com/gin-gonic/gin"
)

const (
	identityEvent     = "identity"
	keepAliveInterval = 25 * time.Second
)

// Events streams identity changes for the caller's session as
// Server-Sent Events. The first event is the current identity. The
// stream sends null and ends when the session is revoked or expires.
func (h *Handler) Events(c *gin.Context) {
	ctx := c.Request.Context()

	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		writeError(c, apperrors.ErrNotAuthenticated)
		return
	}

	events, err := h.feed.Subscribe(ctx, p.SessionID, p.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	current, err := h.accounts.Get(ctx, p.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if !writeIdentity(c, current) {
		return
	}

	expiry := time.NewTimer(p.ExpiresAt.Sub(h.now()))
	defer expiry.Stop()
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiry.C:
			writeIdentity(c, nil)
			return
		case <-keepAlive.C:
			if _, err := c.Writer.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !writeIdentity(c, ev.Identity) || ev.Identity == nil {
				return
			}
		}
	}
}

func writeIdentity(c *gin.Context, identity *auth.Identity) bool {
	payload, err := feed.Encode(identity)
	if err != nil {
		logger.Error("failed to encode identity event", map[string]any{
			"error": err.Error(),
		})
		return false
	}
	c.SSEvent(identityEvent, string(payload))
	c.Writer.Flush()
	return true
}
