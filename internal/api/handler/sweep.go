package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/loanproof/loanproof/internal/ledger"
)

// SweepHandler runs the full-population verification pass. The endpoint is
// meant for a scheduled-job caller and is authenticated by a pre-shared
// secret, not end-user identity.
type SweepHandler struct {
	svc    *ledger.Service
	secret string
	logger *zap.Logger
}

// NewSweepHandler creates a SweepHandler. The secret may be either the
// plaintext value or its bcrypt hash (recognized by the "$2" prefix).
func NewSweepHandler(svc *ledger.Service, secret string, logger *zap.Logger) *SweepHandler {
	return &SweepHandler{svc: svc, secret: secret, logger: logger}
}

// Register mounts the sweep route on the given router group.
func (h *SweepHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sweep", h.Sweep)
}

// Sweep handles POST /sweep.
func (h *SweepHandler) Sweep(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sweep secret not configured"})
		return
	}
	if !h.authorized(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	start := time.Now()
	result, err := h.svc.SweepAll(c.Request.Context())
	if err != nil {
		h.logger.Error("sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sweep ledgers"})
		return
	}

	h.logger.Info("sweep complete",
		zap.Int("total", result.TotalLoans),
		zap.Int("tampered", result.TamperedLoans),
		zap.Duration("elapsed", time.Since(start)),
	)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"results":   result,
	})
}

func (h *SweepHandler) authorized(header string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}
	if strings.HasPrefix(h.secret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(h.secret), []byte(token)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(h.secret), []byte(token)) == 1
}
