package auth

import "time"

// Identity is the signed-in account as the identity service reports it.
// Email never changes after creation; DisplayName and PhotoURL are user
// editable and start empty for password accounts.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PhotoURL     string    `json:"photoURL,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastSignInAt time.Time `json:"lastSignInAt"`
}

// Clone returns a copy that shares no state with i. A nil identity
// clones to nil.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// SameAccount reports whether both identities name the same account.
func (i *Identity) SameAccount(other *Identity) bool {
	if i == nil || other == nil {
		return false
	}
	return i.ID == other.ID
}

// ProviderIdentity represents a normalized external authentication identity
// returned by an OAuth provider. It contains facts only, no decisions.
type ProviderIdentity struct {
	Provider       string // e.g. "google", "keycloak"
	ProviderUserID string // provider-scoped unique user identifier (sub)
	Email          string // email returned by provider
	EmailVerified  bool   // whether provider asserts email ownership
	Name           string // display name claim, may be empty
	Picture        string // avatar URL claim, may be empty
}

// Equal reports whether both identities carry the same values. Two nil
// identities are equal.
func (i *Identity) Equal(other *Identity) bool {
	if i == nil || other == nil {
		return i == nil && other == nil
	}
	return i.ID == other.ID &&
		i.Email == other.Email &&
		i.DisplayName == other.DisplayName &&
		i.PhotoURL == other.PhotoURL &&
		i.Provider == other.Provider &&
		i.CreatedAt.Equal(other.CreatedAt) &&
		i.LastSignInAt.Equal(other.LastSignInAt)
}
