// Package httpgw is the identity gateway backed by the EcoTrack identity
// service. It keeps the bearer session on disk between runs and follows
// the service's identity event stream while signed in.
package httpgw

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/client/gateway"
	"ecotrack/internal/logger"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultPollInterval = time.Second
	defaultFlowTimeout  = 5 * time.Minute
	defaultReconnect    = time.Second
	defaultMaxReconnect = 30 * time.Second
)

type Config struct {
	// BaseURL is the identity service root.
	BaseURL string

	// SessionFile keeps the session between runs. Empty disables it.
	SessionFile string

	// HTTPClient is used for request/response calls. The event stream
	// uses a copy without the timeout.
	HTTPClient *http.Client

	// OpenURL shows the provider's sign-in page to the user.
	OpenURL func(authURL string) error

	PollInterval time.Duration
	FlowTimeout  time.Duration

	// Event stream reconnect bounds.
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration

	Now func() time.Time
}

// Gateway talks to the identity service. Call Start once to restore the
// saved session and settle the change feed.
type Gateway struct {
	baseURL      string
	client       *http.Client
	streamClient *http.Client
	store        *sessionFile
	openURL      func(string) error
	pollInterval time.Duration
	flowTimeout  time.Duration
	reconnect    time.Duration
	maxReconnect time.Duration
	now          func() time.Time

	feed *gateway.Feed
	wg   sync.WaitGroup

	emit sync.Mutex // orders session changes with their publication

	mu        sync.Mutex
	token     string
	identity  *auth.Identity
	expiresAt time.Time
	gen       uint64
	stopWatch context.CancelFunc
	closed    bool
}

var (
	_ gateway.Gateway    = (*Gateway)(nil)
	_ oauth2.TokenSource = (*Gateway)(nil)
)

func New(cfg Config) (*Gateway, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("httpgw: invalid identity service URL %q", cfg.BaseURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	stream := *client
	stream.Timeout = 0

	g := &Gateway{
		baseURL:      base,
		client:       client,
		streamClient: &stream,
		openURL:      cfg.OpenURL,
		pollInterval: cfg.PollInterval,
		flowTimeout:  cfg.FlowTimeout,
		reconnect:    cfg.ReconnectInterval,
		maxReconnect: cfg.MaxReconnectInterval,
		now:          cfg.Now,
		feed:         gateway.NewFeed(),
	}
	if cfg.SessionFile != "" {
		g.store = &sessionFile{path: cfg.SessionFile}
	}
	if g.pollInterval <= 0 {
		g.pollInterval = defaultPollInterval
	}
	if g.flowTimeout <= 0 {
		g.flowTimeout = defaultFlowTimeout
	}
	if g.reconnect <= 0 {
		g.reconnect = defaultReconnect
	}
	if g.maxReconnect <= 0 {
		g.maxReconnect = defaultMaxReconnect
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// Start restores the saved session, if any, and settles the feed.
//
// A saved session the service rejects is discarded. When the service
// cannot be reached the saved identity is kept and the event stream
// retries in the background.
func (g *Gateway) Start(ctx context.Context) {
	saved, err := g.store.load()
	if err != nil {
		logger.Warn("discarding unreadable session file", map[string]any{"error": err.Error()})
		g.store.remove()
	}
	if saved == nil || (!saved.ExpiresAt.IsZero() && !g.now().Before(saved.ExpiresAt)) {
		g.clearSession()
		return
	}

	var identity auth.Identity
	err = g.call(ctx, http.MethodGet, "/auth/me", saved.Token, nil, &identity)
	switch {
	case err == nil:
		g.setSession(saved.Token, &identity, saved.ExpiresAt)
	case apperrors.CodeOf(err) == apperrors.CodeNotAuthenticated:
		logger.Info("saved session was rejected", nil)
		g.clearSession()
	default:
		logger.Warn("could not verify saved session", map[string]any{"error": err.Error()})
		g.setSession(saved.Token, saved.Identity, saved.ExpiresAt)
	}
}

// Close stops the event stream. The saved session stays on disk.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	if g.stopWatch != nil {
		g.stopWatch()
		g.stopWatch = nil
	}
	g.mu.Unlock()
	g.wg.Wait()
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token     string         `json:"token"`
	Identity  *auth.Identity `json:"identity"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (g *Gateway) CreateAccount(ctx context.Context, email, password string) (*auth.Identity, error) {
	return g.passwordSignIn(ctx, "/auth/register", email, password)
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	return g.passwordSignIn(ctx, "/auth/login", email, password)
}

func (g *Gateway) passwordSignIn(ctx context.Context, path, email, password string) (*auth.Identity, error) {
	var resp signInResponse
	err := g.call(ctx, http.MethodPost, path, "", credentialsRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.Identity == nil {
		return nil, apperrors.New(apperrors.CodeProviderError, "identity service returned no session")
	}
	g.setSession(resp.Token, resp.Identity, resp.ExpiresAt)
	return resp.Identity.Clone(), nil
}

// SignOut ends the local session. Revoking it on the service is best
// effort.
func (g *Gateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	token := g.token
	g.mu.Unlock()

	if token != "" {
		if err := g.call(ctx, http.MethodPost, "/auth/logout", token, nil, nil); err != nil {
			logger.Warn("could not revoke session", map[string]any{"error": err.Error()})
		}
	}
	g.clearSession()
	return nil
}

// UpdateProfileFields edits the profile on the service. The new identity
// is kept locally without a change event; the service's event stream
// reports it.
func (g *Gateway) UpdateProfileFields(ctx context.Context, fields gateway.ProfileFields) error {
	g.mu.Lock()
	token, gen := g.token, g.gen
	g.mu.Unlock()
	if token == "" {
		return apperrors.ErrNotAuthenticated
	}

	var identity auth.Identity
	err := g.call(ctx, http.MethodPatch, "/auth/profile", token, fields, &identity)
	if apperrors.CodeOf(err) == apperrors.CodeNotAuthenticated {
		g.dropSession(gen)
		return err
	}
	if err != nil {
		return err
	}

	g.mu.Lock()
	if gen == g.gen {
		g.identity = identity.Clone()
	}
	saved := g.savedLocked()
	g.mu.Unlock()
	g.persist(saved)
	return nil
}

func (g *Gateway) CurrentIdentity() *auth.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.identity.Clone()
}

func (g *Gateway) OnIdentityChange(fn func(*auth.Identity)) func() {
	return g.feed.Subscribe(fn)
}

// Token returns the bearer token of the current session.
func (g *Gateway) Token() (*oauth2.Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken: g.token,
		TokenType:   "Bearer",
		Expiry:      g.expiresAt,
	}, nil
}

// setSession replaces the session, restarts the event stream and
// publishes the identity.
func (g *Gateway) setSession(token string, identity *auth.Identity, expiresAt time.Time) {
	g.emit.Lock()
	defer g.emit.Unlock()

	g.mu.Lock()
	g.stopLocked()
	g.gen++
	g.token = token
	g.identity = identity.Clone()
	g.expiresAt = expiresAt
	if !g.closed {
		ctx, cancel := context.WithCancel(context.Background())
		g.stopWatch = cancel
		g.wg.Add(1)
		go g.watch(ctx, g.gen, token)
	}
	saved := g.savedLocked()
	g.mu.Unlock()

	g.persist(saved)
	g.feed.Publish(identity)
}

func (g *Gateway) clearSession() {
	g.emit.Lock()
	defer g.emit.Unlock()

	g.mu.Lock()
	g.resetLocked()
	g.mu.Unlock()

	g.store.remove()
	g.feed.Publish(nil)
}

// dropSession clears the session only if it is still generation gen.
func (g *Gateway) dropSession(gen uint64) {
	g.applyRemote(gen, nil)
}

// applyRemote applies an identity reported by the service for session
// generation gen. Reports about a replaced session are ignored, as are
// reports that change nothing.
func (g *Gateway) applyRemote(gen uint64, identity *auth.Identity) {
	g.emit.Lock()
	defer g.emit.Unlock()

	g.mu.Lock()
	if gen != g.gen {
		g.mu.Unlock()
		return
	}
	if identity == nil {
		g.resetLocked()
		g.mu.Unlock()
		g.store.remove()
		g.feed.Publish(nil)
		return
	}
	if g.identity.Equal(identity) {
		g.mu.Unlock()
		return
	}
	g.identity = identity.Clone()
	saved := g.savedLocked()
	g.mu.Unlock()

	g.persist(saved)
	g.feed.Publish(identity)
}

func (g *Gateway) resetLocked() {
	g.stopLocked()
	g.gen++
	g.token = ""
	g.identity = nil
	g.expiresAt = time.Time{}
}

func (g *Gateway) stopLocked() {
	if g.stopWatch != nil {
		g.stopWatch()
		g.stopWatch = nil
	}
}

func (g *Gateway) savedLocked() *savedSession {
	if g.token == "" {
		return nil
	}
	return &savedSession{Token: g.token, Identity: g.identity.Clone(), ExpiresAt: g.expiresAt}
}

func (g *Gateway) persist(s *savedSession) {
	if s == nil {
		return
	}
	if err := g.store.save(s); err != nil {
		logger.Warn("could not save session", map[string]any{"error": err.Error()})
	}
}

