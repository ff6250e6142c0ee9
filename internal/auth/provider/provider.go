// Package provider holds the external identity providers the service
// can hand a federated sign-in to.
package provider

import (
	"context"

	"ecotrack/internal/auth"
)

// OAuthProvider runs the authorization code flow with PKCE against one
// external provider. It reports who the provider vouches for and makes
// no account decisions.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*auth.ProviderIdentity, error)
}
