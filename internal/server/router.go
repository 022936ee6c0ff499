// Package server assembles the gin engine: middleware, chat routes,
// diagnostics and operational endpoints.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/user/chat-proxy/internal/config"
	"github.com/user/chat-proxy/internal/credential"
	"github.com/user/chat-proxy/internal/diag"
	"github.com/user/chat-proxy/internal/llm"
	"github.com/user/chat-proxy/internal/middleware"
	"github.com/user/chat-proxy/internal/proxy"
	"github.com/user/chat-proxy/internal/secrets"
	"github.com/user/chat-proxy/internal/store"
	"github.com/user/chat-proxy/internal/tokens"
)

const ServiceName = "chat-proxy"

// Deps are the collaborators the router wires into handlers. SecretsManager,
// ParameterStore and RateLimit may be nil.
type Deps struct {
	Config         *config.Config
	Logger         *slog.Logger
	Factory        llm.Factory
	Tokens         *tokens.Counter
	SecretsManager secrets.Store
	ParameterStore secrets.Store
	RateLimit      store.RateLimitStore
}

// Credentials builds one resolver per strategy from deps.
func Credentials(deps Deps) map[credential.Strategy]credential.Resolver {
	cfg := deps.Config
	return map[credential.Strategy]credential.Resolver{
		credential.StrategyEnv:            credential.NewEnv(cfg.OpenAIAPIKey),
		credential.StrategyLiteral:        credential.NewLiteral(credential.HardcodedAPIKey),
		credential.StrategySecretsManager: credential.NewSecretsManager(deps.SecretsManager, cfg.SecretName, credential.Format(cfg.SecretFormat)),
		credential.StrategyParameterStore: credential.NewParameterStore(deps.ParameterStore, cfg.ParameterName),
	}
}

// Routes lists the chat endpoints and the configuration each one runs with.
func Routes(cfg *config.Config, creds map[credential.Strategy]credential.Resolver) []proxy.RouteConfig {
	verbose := cfg.VerboseErrors
	return []proxy.RouteConfig{
		{
			Name:           "chat",
			Credential:     creds[credential.StrategyEnv],
			Delivery:       proxy.DeliveryStream,
			StreamFallback: true,
			VerboseErrors:  verbose,
		},
		{
			Name:          "chat-openai-nonstream",
			Credential:    creds[credential.StrategyEnv],
			Delivery:      proxy.DeliveryBuffered,
			VerboseErrors: verbose,
		},
		{
			Name:     "chat-simple",
			Delivery: proxy.DeliveryEcho,
		},
		{
			Name:          "chat-stream-test",
			Credential:    creds[credential.StrategyEnv],
			Delivery:      proxy.DeliveryStream,
			VerboseErrors: verbose,
		},
		{
			Name:          "chat-with-secrets",
			Credential:    creds[credential.StrategyLiteral],
			Delivery:      proxy.DeliveryBuffered,
			VerboseErrors: verbose,
		},
		{
			Name:          "chat-with-secrets-manager",
			Credential:    creds[credential.StrategySecretsManager],
			Delivery:      proxy.DeliveryBuffered,
			VerboseErrors: verbose,
			ErrorPrefix:   "API error",
		},
		{
			Name:          "chat-with-parameter-store",
			Credential:    creds[credential.StrategyParameterStore],
			Delivery:      proxy.DeliveryBuffered,
			VerboseErrors: verbose,
			ErrorPrefix:   "API error",
		},
	}
}

func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cfg := deps.Config

	r := gin.New()
	// ClientIP keys the rate limiter; only listed proxies may set it.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("server: trusted proxies: %w", err)
	}
	r.Use(middleware.RecoveryMiddleware())
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(ServiceName))
	}
	r.Use(middleware.RequestIDMiddleware(deps.Logger))
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if deps.RateLimit != nil && cfg.RateLimitRPM > 0 {
		api.Use(middleware.RateLimitMiddleware(deps.RateLimit, cfg.RateLimitRPM))
	}

	settings := proxy.Settings{
		Model:       cfg.Model,
		MaxDuration: cfg.MaxDuration,
		Factory:     deps.Factory,
		Tokens:      deps.Tokens,
	}
	creds := Credentials(deps)
	for _, route := range Routes(cfg, creds) {
		routeSettings := settings
		if cfg.BreakerEnabled && deps.Factory != nil {
			routeSettings.Factory = llm.WithBreaker(deps.Factory, llm.NewBreaker(route.Name))
		}
		h, err := proxy.NewHandler(routeSettings, route)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		path := "/" + route.Name
		api.POST(path, h.Chat)
		api.OPTIONS(path, middleware.Preflight)
	}

	probe := make(map[string]credential.Resolver, len(creds))
	for strategy, resolver := range creds {
		probe[string(strategy)] = resolver
	}
	d := diag.NewHandler(nil, probe)
	api.GET("/env-test", d.EnvTest)
	api.OPTIONS("/env-test", middleware.Preflight)
	api.GET("/hello", d.HelloGet)
	api.POST("/hello", d.HelloPost)
	api.OPTIONS("/hello", middleware.Preflight)

	deps.Logger.Info("Router ready", "model", cfg.Model, "credentials", d.CredentialNames(), "rate_limit", deps.RateLimit != nil)
	return r, nil
}
