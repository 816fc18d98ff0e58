package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"imagevault/docs"

	"imagevault/internal/auth"
	"imagevault/internal/cache"
	"imagevault/internal/config"
	"imagevault/internal/db"
	"imagevault/internal/handler"
	"imagevault/internal/logging"
	"imagevault/internal/notify"
	"imagevault/internal/observability"
	"imagevault/internal/repository"
	"imagevault/internal/router"
	"imagevault/internal/service"
	"imagevault/internal/storage"
)

const serviceName = "imagevault"

var version = "dev"

// @title Image Vault API
// @version 1.0
// @description Per-user identity and image storage with JWT authentication.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", logging.ErrorAttrs(err)...)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(serviceName, version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return err
	}
	if cfg.ResetDB {
		logger.Warn("RESET_DB=true detected, dropping all tables")
	}
	if err := db.Migrate(gormDB, cfg.ResetDB); err != nil {
		return err
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	payloads, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if s3Store, ok := payloads.(*storage.S3Store); ok {
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return err
		}
	}

	notifier, err := newNotifier(cfg.SMTP, logger)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	// Initialize repositories
	identityRepo := repository.NewIdentityRepository(gormDB)
	assetRepo := repository.NewAssetRepository(gormDB)
	activityRepo := repository.NewActivityLogRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	hasher := auth.NewBcryptHasher(0)

	activity := service.NewActivityRecorder(ctx, activityRepo, logger)
	defer activity.Close()

	opts := []service.Option{
		service.WithIdentityCache(cache.NewIdentityCache(cacheClient)),
		service.WithMetrics(metrics),
		service.WithLogger(logger),
		service.WithActivityRecorder(activity),
	}

	// Initialize services
	authService := service.NewAuthService(identityRepo, jwtService, hasher, hasher, notifier, cfg.ResetLinkBase, opts...)
	assetService := service.NewAssetService(assetRepo, identityRepo, jwtService, payloads, opts...)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, router.Dependencies{
		Logger:  logger,
		Metrics: metrics,
		Health:  cacheClient,
	},
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(authService),
		handler.NewImageHandler(assetService),
	)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	logger.Info("swagger documentation available", "url", swaggerURL(cfg))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		logger.Info("http server listening", "addr", addr, "storage", cfg.Storage.Driver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newNotifier(cfg config.SMTPConfig, logger *slog.Logger) (notify.Notifier, error) {
	if cfg.Host == "" {
		logger.Warn("SMTP_HOST not set, password reset links will be logged")
		return notify.LogNotifier{Logger: logger}, nil
	}
	return notify.NewSMTPNotifier(cfg, logger)
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
