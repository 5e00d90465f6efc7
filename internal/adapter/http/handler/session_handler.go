package handler

import (
	"net/http"

	"wallet-sync-engine/internal/adapter/http/dto"
	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/internal/core/ports"
	"wallet-sync-engine/pkg/apperror"
	"wallet-sync-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// SessionHandler issues session tokens for wallet identities.
type SessionHandler struct {
	tokenSvc ports.TokenService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(tokenSvc ports.TokenService) *SessionHandler {
	return &SessionHandler{tokenSvc: tokenSvc}
}

// Create handles POST /api/v1/session.
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	identity := domain.Identity(req.Identity)
	if err := identity.Validate(); err != nil {
		response.Error(c, apperror.ErrInvalidIdentity(err.Error()))
		return
	}

	token, expiry, err := h.tokenSvc.Generate(identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SessionResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

// HealthCheck handles GET /health — deep health check verifying all dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
