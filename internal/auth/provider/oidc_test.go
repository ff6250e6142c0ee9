package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeycloakAuthURL(t *testing.T) {
	t.Parallel()

	got := keycloakAuthURL("http://keycloak:8080/realms/ecotrack", "http://localhost:8081/")
	assert.Equal(t, "http://localhost:8081/realms/ecotrack/protocol/openid-connect/auth", got)
}

func TestClaimsToIdentity(t *testing.T) {
	t.Parallel()

	id, err := idClaims{
		Subject:           "sub-1",
		Email:             "ada@example.com",
		EmailVerified:     true,
		PreferredUsername: "ada",
	}.identity(Keycloak)
	require.NoError(t, err)
	assert.Equal(t, Keycloak, id.Provider)
	assert.Equal(t, "sub-1", id.ProviderUserID)
	assert.Equal(t, "ada", id.Name, "falls back to the username")
	assert.True(t, id.EmailVerified)

	id, err = idClaims{Subject: "s", Email: "e@x.io", Name: "Ada L", PreferredUsername: "ada"}.identity(Google)
	require.NoError(t, err)
	assert.Equal(t, "Ada L", id.Name)

	_, err = idClaims{Email: "e@x.io"}.identity(Google)
	assert.Error(t, err)
}

func TestNewOIDCRequiresSettings(t *testing.T) {
	t.Parallel()

	_, err := NewOIDC(context.Background(), OIDCConfig{Name: "x", Issuer: "https://idp.test"})
	assert.ErrorContains(t, err, "required")

	_, err = NewGoogle(context.Background(), "id", "", "https://svc.test/cb")
	assert.ErrorContains(t, err, "client secret")
}
