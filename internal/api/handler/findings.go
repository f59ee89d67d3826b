package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loanproof/loanproof/internal/tamper"
)

const (
	defaultFindingsLimit = 50
	maxFindingsLimit     = 500
)

// FindingsHandler exposes the recorded tamper findings, newest first.
type FindingsHandler struct {
	store  tamper.FindingStore
	logger *zap.Logger
}

// NewFindingsHandler creates a FindingsHandler.
func NewFindingsHandler(store tamper.FindingStore, logger *zap.Logger) *FindingsHandler {
	return &FindingsHandler{store: store, logger: logger}
}

// Register mounts the findings route on the given router group.
func (h *FindingsHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/tamper/findings", h.List)
}

// List handles GET /tamper/findings.
func (h *FindingsHandler) List(c *gin.Context) {
	limit := defaultFindingsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxFindingsLimit)
	}

	findings, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list tamper findings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list findings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    len(findings),
		"findings": findings,
	})
}
