// Package gateway defines the identity gateway the client session store
// wraps, and the ordered change feed every implementation publishes on.
package gateway

import (
	"context"

	"ecotrack/internal/auth"
)

// ProfileFields is a partial profile edit. Nil fields stay unchanged.
type ProfileFields struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

// Gateway is the authentication service as the client consumes it.
//
// Implementations report the signed-in identity through OnIdentityChange.
// Mutators return typed *apperrors.Error failures where they can classify
// them; the identity they return is informational only.
type Gateway interface {
	CreateAccount(ctx context.Context, email, password string) (*auth.Identity, error)
	SignIn(ctx context.Context, email, password string) (*auth.Identity, error)
	// SignInInteractive runs a federated sign-in with the named provider.
	// Whether the account was created or already existed is not reported.
	SignInInteractive(ctx context.Context, provider string) (*auth.Identity, error)
	SignOut(ctx context.Context) error
	// UpdateProfileFields edits display metadata of the current identity.
	// It may or may not emit a change event.
	UpdateProfileFields(ctx context.Context, fields ProfileFields) error
	CurrentIdentity() *auth.Identity
	// OnIdentityChange registers fn. The first call to fn is asynchronous
	// and happens once the gateway has settled its initial state.
	OnIdentityChange(fn func(*auth.Identity)) (unsubscribe func())
}

func String(s string) *string {
	return &s
}
