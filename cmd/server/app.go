package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/gin-gonic/gin"

	"github.com/user/chat-proxy/internal/config"
	"github.com/user/chat-proxy/internal/llm"
	"github.com/user/chat-proxy/internal/secrets"
	"github.com/user/chat-proxy/internal/server"
	"github.com/user/chat-proxy/internal/store"
	"github.com/user/chat-proxy/internal/telemetry"
	"github.com/user/chat-proxy/internal/tokens"
)

// app is everything built from configuration at startup.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	router  *gin.Engine
	closers []func(context.Context) error
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	a := &app{cfg: cfg, logger: logger}

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer(server.ServiceName, os.Stdout)
		if err != nil {
			// Tracing is optional; keep serving without it.
			logger.Error("Failed to init telemetry", "error", err)
		} else {
			a.closers = append(a.closers, shutdown)
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	smStore, err := secrets.NewSecretsManagerStore(secretsmanager.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	psStore, err := secrets.NewParameterStore(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}

	// The router wraps this per route with a circuit breaker when enabled.
	factory := llm.NewOpenAIFactory(llm.OpenAIOptions{BaseURL: cfg.OpenAIBaseURL, Timeout: cfg.MaxDuration})

	counter := tokens.NewCounter()
	if !counter.Warm(cfg.Model) {
		logger.Warn("No tokenizer for model, usage metrics will be estimated", "model", cfg.Model)
	}

	deps := server.Deps{
		Config:         cfg,
		Logger:         logger,
		Factory:        factory,
		Tokens:         counter,
		SecretsManager: smStore,
		ParameterStore: psStore,
	}
	if cfg.RateLimitEnabled() {
		rl := store.NewRedisRateLimitStore(cfg.RedisAddr, cfg.RedisPassword)
		if err := rl.Ping(ctx); err != nil {
			logger.Error("Redis unreachable, rate limiting disabled", "addr", cfg.RedisAddr, "error", err)
			_ = rl.Close()
		} else {
			deps.RateLimit = rl
			a.closers = append(a.closers, func(context.Context) error { return rl.Close() })
		}
	}

	a.router, err = server.NewRouter(deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Error("Failed to release resource", "error", err)
		}
	}
}
