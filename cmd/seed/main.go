package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"imagevault/internal/auth"
	"imagevault/internal/config"
	"imagevault/internal/db"
	"imagevault/internal/logging"
	"imagevault/internal/notify"
	"imagevault/internal/repository"
	"imagevault/internal/service"
	"imagevault/internal/storage"
)

func main() {
	var opts seedOptions
	pflag.StringVar(&opts.Email, "email", "demo@example.com", "email of the demo identity")
	pflag.StringVar(&opts.Password, "password", "Demo1234!", "password of the demo identity")
	pflag.StringVar(&opts.FirstName, "first-name", "Demo", "first name of the demo identity")
	pflag.StringVar(&opts.LastName, "last-name", "User", "last name of the demo identity")
	pflag.StringVar(&opts.Dir, "dir", "", "directory of images to upload")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", logging.ErrorAttrs(err)...)
		os.Exit(1)
	}
	logger := logging.Setup("imagevault-seed", "dev", "text", logging.ParseLevel(cfg.LogLevel), os.Stderr)
	opts.Origin = cfg.ResetLinkBase

	ctx := context.Background()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logging.LogError(ctx, logger, "connect to database", err)
		os.Exit(1)
	}
	if err := db.Migrate(gormDB, false); err != nil {
		logging.LogError(ctx, logger, "run migrations", err)
		os.Exit(1)
	}

	payloads, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logging.LogError(ctx, logger, "open payload storage", err)
		os.Exit(1)
	}
	if s3Store, ok := payloads.(*storage.S3Store); ok {
		if err := s3Store.EnsureBucket(ctx); err != nil {
			logging.LogError(ctx, logger, "ensure bucket", err)
			os.Exit(1)
		}
	}

	identityRepo := repository.NewIdentityRepository(gormDB)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	hasher := auth.NewBcryptHasher(0)

	authService := service.NewAuthService(identityRepo, jwtService, hasher, hasher,
		notify.LogNotifier{Logger: logger}, cfg.ResetLinkBase, service.WithLogger(logger))
	assetService := service.NewAssetService(repository.NewAssetRepository(gormDB), identityRepo,
		jwtService, payloads, service.WithLogger(logger))

	report, err := seed(ctx, authService, assetService, opts, logger)
	if err != nil {
		logging.LogError(ctx, logger, "seed failed", err)
		os.Exit(1)
	}
	logger.Info("seed completed",
		"email", opts.Email,
		"uploaded", report.Uploaded,
		"skipped", report.Skipped,
	)
}
