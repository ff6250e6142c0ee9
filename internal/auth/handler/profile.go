package handler

import (
	"net/http"
	"strings"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth/account"
	"ecotrack/internal/auth/policy"
	"ecotrack/internal/logger"
	"ecotrack/internal/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	p, ok := middleware.PrincipalFromContext(c.Request.Context())
	if !ok {
		writeError(c, apperrors.ErrNotAuthenticated)
		return
	}

	identity, err := h.accounts.Get(c.Request.Context(), p.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// UpdateProfile edits display metadata. Omitted fields keep their value;
// the new identity goes out on the user's feed.
func (h *Handler) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()

	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		writeError(c, apperrors.ErrNotAuthenticated)
		return
	}

	var fields account.ProfileFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c)
		return
	}
	if fields.DisplayName != nil {
		name := strings.TrimSpace(*fields.DisplayName)
		fields.DisplayName = &name
	}
	if fields.PhotoURL != nil {
		photo := strings.TrimSpace(*fields.PhotoURL)
		if err := policy.ValidatePhotoURL(photo); err != nil {
			writeError(c, err)
			return
		}
		fields.PhotoURL = &photo
	}

	identity, err := h.accounts.UpdateProfile(ctx, p.UserID, fields)
	if err != nil {
		writeError(c, err)
		return
	}

	if !fields.Empty() {
		if err := h.feed.PublishUser(ctx, p.UserID, identity); err != nil {
			logger.Warn("failed to publish profile change", map[string]any{
				"user_id": p.UserID,
				"error":   err.Error(),
			})
		}
	}

	c.JSON(http.StatusOK, identity)
}
