// Command server runs the realtime support chat: the /ws websocket endpoint,
// the REST API under API_BASE_PATH, /health and /metrics.
//
// Configuration comes from the environment (optionally seeded from .env);
// see internal/config for the full list of variables.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-realtime/internal/auth"
	"github.com/tbourn/go-chat-realtime/internal/config"
	httpapi "github.com/tbourn/go-chat-realtime/internal/http"
	"github.com/tbourn/go-chat-realtime/internal/notify"
	"github.com/tbourn/go-chat-realtime/internal/observability"
	"github.com/tbourn/go-chat-realtime/internal/repo"
	"github.com/tbourn/go-chat-realtime/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("failed to read .env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)

	if cfg.Auth.JWTSecret == config.DevJWTSecret {
		logger.Warn().Msg("JWT_SECRET is the development default; set a real secret outside local development")
	}

	shutdownOTel, err := observability.SetupOTel(context.Background(), cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	logger.Info().Str("path", cfg.DBPath).Msg("database ready")

	notifier, closeNotifier := buildNotifier(cfg.Redis, logger)
	defer closeNotifier()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	hub := httpapi.RegisterRoutes(r, db, notifier, auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Int("open_connections", hub.Sessions.Len()).Int("active_rooms", hub.Registry.Rooms()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked websocket connections; they end
	// when the process exits and clients reconnect elsewhere.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	if err := shutdownOTel(ctx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info().Msg("server exited")
}

// buildNotifier always logs notifications and additionally queues them on
// Redis when REDIS_ADDR is set.
func buildNotifier(cfg config.RedisConfig, logger zerolog.Logger) (notify.Notifier, func()) {
	logN := notify.LogNotifier{Log: logger.With().Str("component", "notify").Logger()}
	if cfg.Addr == "" {
		return logN, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable; queued notifications fail until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Addr).Str("queue", cfg.Queue).Msg("redis connection established")
	}
	return notify.Multi{logN, notify.NewRedisNotifier(rdb, cfg.Queue)}, func() { _ = rdb.Close() }
}
