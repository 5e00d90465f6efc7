package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-sync-engine/config"
	httpHandler "wallet-sync-engine/internal/adapter/http/handler"
	storeClient "wallet-sync-engine/internal/adapter/store"
	redisStorage "wallet-sync-engine/internal/adapter/storage/redis"
	"wallet-sync-engine/internal/core/ports"
	"wallet-sync-engine/internal/service"
	"wallet-sync-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Int("store_nodes", len(cfg.Store.Nodes)).
		Msg("Starting Wallet Sync Engine")

	ctx := context.Background()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	tokenSvc := service.NewJWTTokenService(cfg.Session.Secret, cfg.Session.Expiry, cfg.Session.Issuer)
	signer := service.NewKeyringSigner()
	resolver := service.NewAddressResolver()

	// Initialize storage adapters
	localStore := redisStorage.NewLocalStore(rdb, encSvc)
	store := storeClient.NewClient(cfg.Store.Nodes, cfg.Store.NodeTimeout, logger.Component(log, "store"))

	// Initialize sync pipeline
	fetcher := service.NewStateFetcher(store, resolver, service.FetcherConfig{
		InitialBackoff: cfg.Fetch.InitialBackoff,
		MaxBackoff:     cfg.Fetch.MaxBackoff,
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		Budget:         cfg.Fetch.Budget,
	}, logger.Component(log, "fetcher"))
	verifier := service.NewOwnershipVerifier(logger.Component(log, "verifier"))
	consolidator := service.NewConsolidator(logger.Component(log, "consolidator"))
	publisher := service.NewDurablePublisher(store, localStore, signer, resolver, service.PublisherConfig{
		ConfirmAttempts: cfg.Publish.ConfirmAttempts,
		ConfirmBackoff:  cfg.Publish.ConfirmBackoff,
	}, logger.Component(log, "publisher"))
	cache := service.NewRecordCache(localStore, resolver, cfg.Cache.TTL, logger.Component(log, "cache"))

	walletSvc := service.NewWalletService(
		resolver,
		fetcher,
		verifier,
		consolidator,
		publisher,
		cache,
		logger.Component(log, "wallet"),
	)

	// Initialize health checkers
	redisHealth := redisStorage.NewHealthCheck(rdb)
	storeHealth := storeClient.NewHealthCheck(store)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{redisHealth, storeHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
