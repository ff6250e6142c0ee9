package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"ecotrack/internal/auth"
	"ecotrack/internal/logger"
)

const (
	GoogleIssuer = "https://accounts.google.com"
	Google       = "google"
	Keycloak     = "keycloak"
)

// OIDCConfig describes an OpenID Connect provider.
type OIDCConfig struct {
	Name         string
	Issuer       string
	ClientID     string
	ClientSecret string // empty for a public client
	RedirectURL  string

	// AuthURL replaces the discovered authorization endpoint when the
	// browser reaches the issuer on a different host than the service.
	AuthURL string

	// AuthParams are added to every authorization URL.
	AuthParams map[string]string
}

// OIDC is an OAuthProvider backed by OpenID Connect discovery.
type OIDC struct {
	name     string
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
	authOpts []oauth2.AuthCodeOption
}

func NewOIDC(ctx context.Context, cfg OIDCConfig) (*OIDC, error) {
	if cfg.Name == "" || cfg.Issuer == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("provider %q: issuer, client id and redirect URL are required", cfg.Name)
	}

	discovered, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("provider %q: discovery: %w", cfg.Name, err)
	}

	endpoint := discovered.Endpoint()
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	for k, v := range cfg.AuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	return &OIDC{
		name: cfg.Name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: discovered.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		authOpts: opts,
	}, nil
}

// NewGoogle always shows Google's account chooser so a browser signed in
// to several accounts can pick one.
func NewGoogle(ctx context.Context, clientID, clientSecret, redirectURL string) (*OIDC, error) {
	if clientSecret == "" {
		return nil, errors.New("provider \"google\": client secret is required")
	}
	return NewOIDC(ctx, OIDCConfig{
		Name:         Google,
		Issuer:       GoogleIssuer,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		AuthParams:   map[string]string{"prompt": "select_account"},
	})
}

// NewKeycloak uses a public client. issuer is the realm issuer, e.g.
// http://keycloak:8080/realms/ecotrack. A non-empty publicBaseURL moves
// the browser-facing login page onto that host.
func NewKeycloak(ctx context.Context, issuer, clientID, redirectURL, publicBaseURL string) (*OIDC, error) {
	cfg := OIDCConfig{
		Name:        Keycloak,
		Issuer:      issuer,
		ClientID:    clientID,
		RedirectURL: redirectURL,
	}
	if publicBaseURL != "" {
		cfg.AuthURL = keycloakAuthURL(issuer, publicBaseURL)
	}
	return NewOIDC(ctx, cfg)
}

// keycloakAuthURL rebuilds the realm authorization endpoint on host.
func keycloakAuthURL(issuer, host string) string {
	realm := issuer
	if i := strings.Index(issuer, "/realms/"); i >= 0 {
		realm = issuer[i:]
	}
	return strings.TrimRight(host, "/") + realm + "/protocol/openid-connect/auth"
}

func (p *OIDC) Name() string { return p.name }

func (p *OIDC) AuthCodeURL(state, codeChallenge string) string {
	opts := append([]oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}, p.authOpts...)
	return p.config.AuthCodeURL(state, opts...)
}

// ExchangeCode trades the code for tokens and returns the identity the
// verified ID token asserts.
func (p *OIDC) ExchangeCode(ctx context.Context, code, codeVerifier string) (*auth.ProviderIdentity, error) {
	tok, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%s: token exchange: %w", p.name, err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("%s: no id_token in token response", p.name)
	}
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: id_token: %w", p.name, err)
	}

	var c idClaims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("%s: id_token claims: %w", p.name, err)
	}
	identity, err := c.identity(p.name)
	if err != nil {
		return nil, err
	}

	logger.Info("oidc id_token verified", map[string]any{
		"provider":       p.name,
		"issuer":         idToken.Issuer,
		"email_verified": identity.EmailVerified,
	})
	return identity, nil
}

type idClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
}

func (c idClaims) identity(provider string) (*auth.ProviderIdentity, error) {
	if c.Subject == "" || c.Email == "" {
		return nil, fmt.Errorf("%s: id_token lacks sub or email", provider)
	}
	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}
	return &auth.ProviderIdentity{
		Provider:       provider,
		ProviderUserID: c.Subject,
		Email:          c.Email,
		EmailVerified:  c.EmailVerified,
		Name:           name,
		Picture:        c.Picture,
	}, nil
}
