package handler

import (
	"context"
	"net/http"
	"time"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/auth/flow"
	"ecotrack/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type startFederatedResponse struct {
	FlowID  string `json:"flow_id"`
	AuthURL string `json:"auth_url"`
}

// startFederated opens a federated sign-in. The client shows auth_url in a
// browser and polls the flow until the callback settles it.
func (h *Handler) startFederated(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		writeErrorStatus(c, http.StatusBadRequest, err)
		return
	}

	verifier, challenge := newPKCE()
	f := flow.Flow{
		ID:        uuid.NewString(),
		Provider:  providerName,
		State:     newState(),
		Verifier:  verifier,
		Status:    flow.StatusPending,
		CreatedAt: h.now(),
	}
	if err := h.flows.Create(c.Request.Context(), f); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, startFederatedResponse{
		FlowID:  f.ID,
		AuthURL: p.AuthCodeURL(f.State, challenge),
	})
}

type flowStatusResponse struct {
	Status   string         `json:"status"`
	Token    string         `json:"token,omitempty"`
	Identity *auth.Identity `json:"identity,omitempty"`
	Code     apperrors.Code `json:"code,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// pollFederated reports a flow's status. A terminal result is handed out
// once and the flow is dropped.
func (h *Handler) pollFederated(c *gin.Context) {
	ctx := c.Request.Context()

	f, err := h.flows.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if f == nil {
		writeError(c, apperrors.New(apperrors.CodeNotFound, "sign-in flow not found or expired"))
		return
	}
	if !f.Terminal() {
		c.JSON(http.StatusOK, gin.H{"status": flow.StatusPending})
		return
	}

	if err := h.flows.Delete(ctx, f.ID); err != nil {
		logger.Warn("failed to drop finished flow", map[string]any{
			"flow_id": f.ID,
			"error":   err.Error(),
		})
	}

	resp := flowStatusResponse{Status: string(f.Status)}
	if f.Status == flow.StatusFailed {
		resp.Code = f.Code
		resp.Error = failureMessage(f.Code)
	} else {
		resp.Token = f.Token
		resp.Identity = f.Identity
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) callback(c *gin.Context) {
	providerName := c.Param("provider")
	ctx := c.Request.Context()

	f, err := h.flowForCallback(ctx, providerName, c.Query("state"))
	if err != nil {
		logger.Error("oidc callback flow lookup failed", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		callbackPage(c, http.StatusInternalServerError, "Sign-in could not be completed. Please try again.")
		return
	}
	if f == nil {
		callbackPage(c, http.StatusBadRequest, "This sign-in link is invalid or has expired.")
		return
	}

	// OAuth error: the user backed out or the provider refused.
	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oidc callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})
		code := apperrors.CodeProviderError
		if errParam == "access_denied" {
			code = apperrors.CodeUserCancelled
		}
		h.finishFlow(ctx, f.Failed(code))
		callbackPage(c, http.StatusOK, failureMessage(code)+". You can close this window.")
		return
	}

	resp, err := h.completeFederated(ctx, *f, c.Query("code"))
	h.metrics.ObserveAttempt("federated", err)
	if err != nil {
		logger.Warn("federated sign-in failed", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		code := apperrors.CodeOf(err)
		if code == apperrors.CodeUnknown {
			code = apperrors.CodeProviderError
		}
		h.finishFlow(ctx, f.Failed(code))
		callbackPage(c, http.StatusOK, failureMessage(code)+". You can close this window.")
		return
	}

	h.finishFlow(ctx, f.Completed(resp.Token, resp.Identity))
	callbackPage(c, http.StatusOK, "Signed in to EcoTrack. You can close this window.")
}

func (h *Handler) completeFederated(ctx context.Context, f flow.Flow, code string) (signInResponse, error) {
	if code == "" {
		return signInResponse{}, apperrors.New(apperrors.CodeProviderError, "callback carried no code")
	}

	p, err := h.providers.Get(f.Provider)
	if err != nil {
		return signInResponse{}, err
	}

	identity, err := p.ExchangeCode(ctx, code, f.Verifier)
	if err != nil {
		return signInResponse{}, apperrors.Wrap(apperrors.CodeProviderError, "code exchange failed", err)
	}

	userID, err := h.resolver.Resolve(ctx, identity)
	if err != nil && apperrors.CodeOf(err) == apperrors.CodeUnknown {
		err = apperrors.Wrap(apperrors.CodeProviderError, "failed to resolve user", err)
	}
	if err != nil {
		return signInResponse{}, err
	}

	return h.startSession(ctx, userID)
}

// finishFlow records the result with a fresh context; the browser may
// already have gone away.
func (h *Handler) finishFlow(ctx context.Context, f flow.Flow) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.flows.Finish(ctx, f); err != nil {
		logger.Error("failed to finish flow", map[string]any{
			"flow_id": f.ID,
			"error":   err.Error(),
		})
	}
}

func failureMessage(code apperrors.Code) string {
	switch code {
	case apperrors.CodeUserCancelled:
		return "Sign-in was cancelled"
	case apperrors.CodeRateLimited:
		return "Too many attempts"
	case apperrors.CodeEmailAlreadyInUse:
		return "An account with this email already exists. Sign in with your password instead"
	default:
		return "The identity provider could not sign you in"
	}
}

func callbackPage(c *gin.Context, status int, message string) {
	c.Data(status, "text/plain; charset=utf-8", []byte(message+"\n"))
}
