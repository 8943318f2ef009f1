package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akopjandvd/todo-api/internal/auth"
	"github.com/akopjandvd/todo-api/internal/config"
	"github.com/akopjandvd/todo-api/internal/constants"
	"github.com/akopjandvd/todo-api/internal/database"
	"github.com/akopjandvd/todo-api/internal/logger"
	"github.com/akopjandvd/todo-api/internal/ratelimit"
	"github.com/akopjandvd/todo-api/internal/server"
)

const serviceName = "todo-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		boot := logger.New(logger.Config{}, serviceName)
		boot.Fatal().Err(err).Msg("server stopped")
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, serviceName)
	if cfg.JWTSecret == constants.DevelopmentJWTSecret {
		log.Warn().Msg("using the development JWT secret; set JWT_SECRET before deploying")
	}

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// Run migrations
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.AccessTokenTTL,
	})
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := newLoginLimiter(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create login rate limiter: %w", err)
	}
	defer closeLimiter()

	router, err := server.New(server.Deps{
		Config:       cfg,
		Log:          log,
		DB:           db,
		Hasher:       auth.NewBcryptHasher(cfg.BcryptCost),
		Tokens:       tokens,
		LoginLimiter: limiter,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("db_driver", cfg.DBDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newLoginLimiter uses Redis when RATE_LIMIT_REDIS_URL is set so replicas share
// counters; otherwise counters live in memory and a janitor sweeps them.
func newLoginLimiter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ratelimit.Limiter, func(), error) {
	limits := ratelimit.Config{MaxAttempts: cfg.LoginRateLimit, Window: cfg.LoginRateWindow}

	if cfg.RateLimitRedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RateLimitRedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("login rate limiter: redis")
		return ratelimit.NewRedisLimiter(client, limits, serviceName+":login:"), func() { client.Close() }, nil
	}

	limiter := ratelimit.NewMemoryLimiter(limits)
	go limiter.RunJanitor(ctx, constants.DefaultJanitorInterval)
	log.Info().Msg("login rate limiter: memory")
	return limiter, func() {}, nil
}
