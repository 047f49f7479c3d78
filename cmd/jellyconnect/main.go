package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lolerskatez/jellyconnect/internal/api"
	"github.com/lolerskatez/jellyconnect/internal/core/service"
	"github.com/lolerskatez/jellyconnect/internal/infrastructure/config"
	mongodb "github.com/lolerskatez/jellyconnect/internal/infrastructure/db/mongo"
	redisdb "github.com/lolerskatez/jellyconnect/internal/infrastructure/db/redis"
	"github.com/lolerskatez/jellyconnect/internal/infrastructure/media"
	"github.com/lolerskatez/jellyconnect/internal/infrastructure/notify"
	"github.com/lolerskatez/jellyconnect/internal/infrastructure/oidc"
	"github.com/lolerskatez/jellyconnect/internal/infrastructure/scheduler"
	"github.com/lolerskatez/jellyconnect/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger is not up yet.
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: !cfg.IsProduction(),
	})

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	userRepo := mongodb.NewUserRepository(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create mongodb indexes")
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	// --- External systems ---
	mediaClient := media.NewClient(media.Config{
		URL:     cfg.Media.URL,
		Token:   cfg.Media.Token,
		Timeout: cfg.Media.Timeout,
	})

	ssoProvider, err := oidc.NewProvider(ctx, oidc.Config{
		IssuerURL:    cfg.OIDC.IssuerURL,
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURL:  cfg.OIDC.RedirectURL,
		Scopes:       cfg.OIDC.Scopes,
		GroupClaims:  cfg.OIDC.GroupClaims,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("oidc provider setup failed")
	}

	// --- Core services ---
	vault, err := service.NewVault(cfg.Vault.Secret)
	if err != nil {
		log.Fatal().Err(err).Msg("vault setup failed")
	}

	notifyLog := logger.Component("notify")
	notifier := notify.NewDispatcher(cfg.Notify.Workers, notify.NewLogNotifier(notifyLog), notifyLog)
	notifier.Start(ctx)

	loginLock := redisdb.NewLoginLock(rdb)

	identityService := service.NewIdentityService(userRepo, mediaClient, vault, notifier, loginLock, logger.Component("identity"))
	pairingService := service.NewPairingService(mediaClient, vault, cfg.Pairing.AllowUnattributed, logger.Component("pairing"))
	lifecycleService := service.NewLifecycleService(userRepo, mediaClient, notifier, logger.Component("lifecycle"))

	// --- Lifecycle sweep schedule ---
	sweeper := scheduler.New(lifecycleService, cfg.Sweep.WarnWindowDays, logger.Component("scheduler"))
	if err := sweeper.Start(cfg.Sweep.Schedule); err != nil {
		log.Fatal().Err(err).Msg("sweep scheduler setup failed")
	}
	defer sweeper.Stop()

	// --- HTTP surface ---
	e := api.NewRouter(api.Deps{
		Identity:       identityService,
		Pairing:        pairingService,
		Lifecycle:      lifecycleService,
		Users:          userRepo,
		Media:          mediaClient,
		SSO:            ssoProvider,
		Mongo:          db,
		Redis:          rdb,
		JWTSecret:      cfg.Session.JWTSecret,
		SessionTTL:     cfg.Session.TTL,
		WarnWindowDays: cfg.Sweep.WarnWindowDays,
		SecureCookies:  cfg.IsProduction(),
		Log:            logger.Component("http"),
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil {
			log.Info().Err(err).Msg("http server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("jellyconnect started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}
