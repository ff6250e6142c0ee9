package handler

import (
	"context"
	"time"

	"ecotrack/internal/auth"
	"ecotrack/internal/auth/account"
	"ecotrack/internal/auth/feed"
	"ecotrack/internal/auth/flow"
	"ecotrack/internal/auth/provider"
	"ecotrack/internal/auth/token"
	"ecotrack/internal/logger"
	"ecotrack/internal/metrics"
	"ecotrack/internal/session"

	"github.com/gin-gonic/gin"
)

type CredentialService interface {
	Register(ctx context.Context, email, password string) (string, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
}

type AccountRepository interface {
	Get(ctx context.Context, userID string) (*auth.Identity, error)
	UpdateProfile(ctx context.Context, userID string, fields account.ProfileFields) (*auth.Identity, error)
	TouchSignIn(ctx context.Context, userID string) error
}

type FlowStore interface {
	Create(ctx context.Context, f flow.Flow) error
	Get(ctx context.Context, id string) (*flow.Flow, error)
	ByState(ctx context.Context, state string) (*flow.Flow, error)
	Finish(ctx context.Context, f flow.Flow) error
	Delete(ctx context.Context, id string) error
}

type Providers interface {
	Get(name string) (provider.OAuthProvider, error)
}

type Resolver interface {
	Resolve(ctx context.Context, identity *auth.ProviderIdentity) (string, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Feed publishes identity changes and streams them back out.
type Feed interface {
	PublishSession(ctx context.Context, sessionID string, identity *auth.Identity) error
	PublishUser(ctx context.Context, userID string, identity *auth.Identity) error
	Subscribe(ctx context.Context, sessionID, userID string) (<-chan feed.Event, error)
}

type Tokens interface {
	Issue(identity *auth.Identity, sessionID string, expiresAt time.Time) (string, error)
	Verify(raw string) (token.Claims, error)
}

// Deps wires a Handler. Metrics and Now are optional.
type Deps struct {
	Credentials CredentialService
	Accounts    AccountRepository
	Sessions    session.Store
	Flows       FlowStore
	Providers   Providers
	Resolver    Resolver
	Limiter     Limiter
	Feed        Feed
	Tokens      Tokens
	Metrics     *metrics.Metrics
	SessionTTL  time.Duration
	Now         func() time.Time
}

type Handler struct {
	credentials CredentialService
	accounts    AccountRepository
	sessions    session.Store
	flows       FlowStore
	providers   Providers
	resolver    Resolver
	limiter     Limiter
	feed        Feed
	tokens      Tokens
	metrics     *metrics.Metrics
	sessionTTL  time.Duration
	now         func() time.Time
}

func NewHandler(d Deps) *Handler {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		credentials: d.Credentials,
		accounts:    d.Accounts,
		sessions:    d.Sessions,
		flows:       d.Flows,
		providers:   d.Providers,
		resolver:    d.Resolver,
		limiter:     d.Limiter,
		feed:        d.Feed,
		tokens:      d.Tokens,
		metrics:     d.Metrics,
		sessionTTL:  d.SessionTTL,
		now:         now,
	}
}

// RegisterRoutes mounts the public auth routes on r and the protected ones
// behind requireAuth.
func (h *Handler) RegisterRoutes(r *gin.Engine, requireAuth gin.HandlerFunc) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)

	r.POST("/auth/federated/:provider/start", h.startFederated)
	r.GET("/auth/federated/flows/:id", h.pollFederated)
	r.GET("/oauth/callback/:provider", h.callback)

	protected := r.Group("/auth")
	protected.Use(requireAuth)
	protected.GET("/me", h.Me)
	protected.PATCH("/profile", h.UpdateProfile)
	protected.GET("/events", h.Events)

	for _, route := range r.Routes() {
		logger.Info("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}
