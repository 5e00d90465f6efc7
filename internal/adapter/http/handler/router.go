package handler

import (
	"wallet-sync-engine/internal/adapter/http/middleware"
	"wallet-sync-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))

	// Health check (deep — verifies Redis + store nodes)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	sessionHandler := NewSessionHandler(deps.TokenSvc)
	v1.POST("/session", sessionHandler.Create)

	// --- Session-authenticated wallet routes ---
	sessionAuth := middleware.SessionAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallet := v1.Group("/wallet", sessionAuth)
	{
		wallet.POST("/initialize", walletHandler.Initialize)
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.POST("/delta", walletHandler.ApplyDelta)
		wallet.POST("/resync", walletHandler.ForceResync)
	}

	return r
}
