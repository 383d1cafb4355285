package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/jcob-sikorski/mech-mashup/internal/auth"
	"github.com/jcob-sikorski/mech-mashup/internal/cache"
	"github.com/jcob-sikorski/mech-mashup/internal/config"
	"github.com/jcob-sikorski/mech-mashup/internal/database"
	"github.com/jcob-sikorski/mech-mashup/internal/logging"
	"github.com/jcob-sikorski/mech-mashup/internal/metrics"
	"github.com/jcob-sikorski/mech-mashup/internal/repositories"
	"github.com/jcob-sikorski/mech-mashup/internal/server"
	"github.com/jcob-sikorski/mech-mashup/internal/services"
)

const (
	shutdownTimeout    = 10 * time.Second
	blacklistPurgeTick = time.Hour
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to CONFIG_PATH)")
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, assuming environment variables are set.")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.Debug); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.Fatalf("Server stopped: %v", err)
	}
	logrus.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	accountRepo := repositories.NewPostgresAccountRepository(db)

	var blacklist repositories.BlacklistRepository
	if cfg.JWT.BlacklistEnabled {
		if cfg.RedisURL != "" {
			redisBlacklist, err := cache.NewRedisBlacklist(ctx, cfg.RedisURL, "")
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer redisBlacklist.Close()
			blacklist = redisBlacklist
			logrus.Info("Token blacklist backed by Redis")
		} else {
			pgBlacklist := repositories.NewPostgresBlacklistRepository(db)
			go purgeBlacklist(ctx, pgBlacklist)
			blacklist = pgBlacklist
			logrus.Info("Token blacklist backed by Postgres")
		}
	}

	tokens := auth.NewTokenManager(cfg.JWT)
	authService := services.NewAuthService(accountRepo, blacklist, tokens, cfg.JWT)
	userService := services.NewUserService(accountRepo)

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	handler, err := server.NewRouter(server.Deps{
		Config:  cfg,
		Auth:    authService,
		Users:   userService,
		Metrics: metrics.New(),
		DB:      db,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Server starting on port %s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// purgeBlacklist deletes expired blacklist rows until ctx is done. Redis
// expires its keys on its own.
func purgeBlacklist(ctx context.Context, repo *repositories.PostgresBlacklistRepository) {
	ticker := time.NewTicker(blacklistPurgeTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				logrus.WithError(err).Warn("Failed to purge expired blacklist entries")
				continue
			}
			if n > 0 {
				logrus.WithField("removed", n).Info("Purged expired blacklist entries")
			}
		}
	}
}
