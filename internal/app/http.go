package app

import (
	"context"
	"net/http"

	"ecotrack/internal/auth/account"
	"ecotrack/internal/auth/credentials"
	"ecotrack/internal/auth/feed"
	"ecotrack/internal/auth/flow"
	"ecotrack/internal/auth/handler"
	"ecotrack/internal/auth/provider"
	"ecotrack/internal/auth/ratelimit"
	"ecotrack/internal/auth/resolver"
	"ecotrack/internal/auth/token"
	"ecotrack/internal/config"
	"ecotrack/internal/logger"
	"ecotrack/internal/metrics"
	"ecotrack/internal/middleware"
	"ecotrack/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	sessionStore := session.NewRedisStore(infra.redis.Client)
	tokens := token.NewIssuer(cfg.TokenSecret, cfg.TokenIssuer, nil)
	m := metrics.New()

	authHandler := handler.NewHandler(handler.Deps{
		Credentials: credentials.NewService(infra.db, credentials.NewHasher(cfg.BcryptCost)),
		Accounts:    account.NewRepository(infra.db),
		Sessions:    sessionStore,
		Flows:       flow.NewRedisStore(infra.redis.Client, cfg.FlowTTL),
		Providers:   registry,
		Resolver:    resolver.New(infra.db),
		Limiter:     ratelimit.New(infra.redis.Client, cfg.LoginRateLimit, cfg.LoginRateWindow),
		Feed:        feed.NewHub(infra.redis.Client),
		Tokens:      tokens,
		Metrics:     m,
		SessionTTL:  cfg.SessionTTL,
	})

	authMiddleware := middleware.NewAuthMiddleware(tokens, sessionStore)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	authHandler.RegisterRoutes(router, middleware.GinRequireAuth(authMiddleware))

	router.GET("/health", func(c *gin.Context) {
		if err := infra.check(c.Request.Context()); err != nil {
			logger.Warn("health check failed", map[string]any{"error": err.Error()})
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"providers": registry.Names(),
		})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	return router, infra.Close, nil
}

// setupProviders registers every provider that has credentials configured.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var list []provider.OAuthProvider

	if cfg.GoogleEnabled() {
		p, err := provider.NewGoogle(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	if cfg.KeycloakEnabled() {
		p, err := provider.NewKeycloak(ctx, cfg.KeycloakIssuer, cfg.KeycloakClientID, cfg.KeycloakRedirectURL, cfg.KeycloakPublicBaseURL)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	registry := provider.NewRegistry(list...)
	logger.Info("oauth providers configured", map[string]any{
		"providers": registry.Names(),
	})
	return registry, nil
}
