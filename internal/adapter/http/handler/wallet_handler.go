package handler

import (
	"wallet-sync-engine/internal/adapter/http/dto"
	"wallet-sync-engine/internal/adapter/http/middleware"
	"wallet-sync-engine/internal/core/domain"
	"wallet-sync-engine/internal/core/ports"
	"wallet-sync-engine/pkg/apperror"
	"wallet-sync-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet endpoints. Every route acts for the identity
// bound by the session middleware; no identity is ever taken from the body.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

func sessionIdentity(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(middleware.CtxIdentity)
	if !ok {
		response.Error(c, apperror.ErrInvalidSessionToken())
		return "", false
	}
	identity, ok := v.(domain.Identity)
	if !ok {
		response.Error(c, apperror.ErrInvalidSessionToken())
		return "", false
	}
	return identity, true
}

// Initialize handles POST /api/v1/wallet/initialize.
func (h *WalletHandler) Initialize(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}

	rec, err := h.walletSvc.InitializeWallet(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromRecord(rec))
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Balance: balance.Amount,
		Stale:   balance.Stale,
	})
}

// ApplyDelta handles POST /api/v1/wallet/delta.
func (h *WalletHandler) ApplyDelta(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}

	var req dto.DeltaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	rec, err := h.walletSvc.ApplyDelta(c.Request.Context(), identity, dto.ToProofs(req.Added), dto.ToProofs(req.Removed))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromRecord(rec))
}

// ForceResync handles POST /api/v1/wallet/resync.
func (h *WalletHandler) ForceResync(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}

	rec, err := h.walletSvc.ForceResync(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromRecord(rec))
}
