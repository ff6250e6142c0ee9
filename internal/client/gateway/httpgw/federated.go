package httpgw

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/logger"
)

type startFlowResponse struct {
	FlowID  string `json:"flow_id"`
	AuthURL string `json:"auth_url"`
}

type flowStatus struct {
	Status   string         `json:"status"`
	Token    string         `json:"token"`
	Identity *auth.Identity `json:"identity"`
	Code     string         `json:"code"`
	Error    string         `json:"error"`
}

const (
	flowPending  = "pending"
	flowComplete = "complete"
	flowFailed   = "failed"
)

// SignInInteractive starts a federated sign-in, hands the provider's
// page to OpenURL and polls the flow until it finishes. Cancelling ctx
// abandons the flow as USER_CANCELLED.
func (g *Gateway) SignInInteractive(ctx context.Context, provider string) (*auth.Identity, error) {
	if g.openURL == nil {
		return nil, apperrors.New(apperrors.CodeProviderError, "no way to open the sign-in page")
	}

	var start startFlowResponse
	path := "/auth/federated/" + url.PathEscape(provider) + "/start"
	if err := g.call(ctx, http.MethodPost, path, "", nil, &start); err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		return nil, err
	}
	if err := g.openURL(start.AuthURL); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProviderError, "could not open the sign-in page", err)
	}

	flowCtx, cancel := context.WithTimeout(ctx, g.flowTimeout)
	defer cancel()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-flowCtx.Done():
			if ctx.Err() != nil {
				return nil, cancelled(ctx)
			}
			return nil, apperrors.New(apperrors.CodeProviderError, "sign-in timed out")
		case <-ticker.C:
		}

		var st flowStatus
		err := g.call(flowCtx, http.MethodGet, "/auth/federated/flows/"+url.PathEscape(start.FlowID), "", nil, &st)
		switch {
		case err == nil:
		case flowCtx.Err() != nil:
			continue
		case apperrors.CodeOf(err) == apperrors.CodeNotFound:
			return nil, apperrors.Wrap(apperrors.CodeProviderError, "sign-in expired", err)
		case apperrors.CodeOf(err) == apperrors.CodeNetwork:
			logger.Warn("federated poll failed", map[string]any{"error": err.Error()})
			continue
		default:
			return nil, err
		}

		switch st.Status {
		case flowPending:
			continue
		case flowComplete:
			if st.Token == "" || st.Identity == nil {
				return nil, apperrors.New(apperrors.CodeProviderError, "identity service returned no session")
			}
			g.setSession(st.Token, st.Identity, tokenExpiry(st.Token))
			return st.Identity.Clone(), nil
		case flowFailed:
			code := apperrors.ParseCode(st.Code)
			if code == apperrors.CodeUnknown {
				code = apperrors.CodeProviderError
			}
			msg := st.Error
			if msg == "" {
				msg = "sign-in failed"
			}
			return nil, apperrors.New(code, msg)
		default:
			return nil, apperrors.New(apperrors.CodeProviderError, "unknown sign-in state "+st.Status)
		}
	}
}

func cancelled(ctx context.Context) error {
	return apperrors.Wrap(apperrors.CodeUserCancelled, "sign-in cancelled", ctx.Err())
}

// tokenExpiry reads the exp claim without verifying the token; the
// service checks it on every call. Zero means unknown.
func tokenExpiry(raw string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
