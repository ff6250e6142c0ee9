package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a password account and signs it in. The new identity
// has an empty display name and photo until the profile is updated.
func (h *Handler) Register(c *gin.Context) {
	h.passwordSignIn(c, "register", http.StatusCreated, h.credentials.Register)
}

func (h *Handler) Login(c *gin.Context) {
	h.passwordSignIn(c, "login", http.StatusOK, h.credentials.Authenticate)
}

// passwordSignIn throttles per operation and email, runs check and
// starts a session for the user it returns.
func (h *Handler) passwordSignIn(
	c *gin.Context,
	operation string,
	status int,
	check func(ctx context.Context, email, password string) (string, error),
) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	resp, err := func() (signInResponse, error) {
		if err := h.throttle(c, attemptKey(operation, req.Email)); err != nil {
			return signInResponse{}, err
		}
		userID, err := check(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			return signInResponse{}, err
		}
		return h.startSession(c.Request.Context(), userID)
	}()
	h.metrics.ObserveAttempt(operation, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, resp)
}
