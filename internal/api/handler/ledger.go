package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loanproof/loanproof/internal/ledger"
	"github.com/loanproof/loanproof/internal/tamper"
)

// LedgerHandler exposes the append, read and verify endpoints.
type LedgerHandler struct {
	svc      *ledger.Service
	detector *tamper.Detector
	logger   *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc *ledger.Service, detector *tamper.Detector, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, detector: detector, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.POST("/append", h.Append)
		l.GET("/read", h.Read)
		l.GET("/verify", h.Verify)
		l.POST("/verify/batch", h.BatchVerify)
	}
}

type appendRequest struct {
	SubjectID   string          `json:"subjectId"`
	EventType   string          `json:"eventType"`
	EventData   json.RawMessage `json:"eventData"`
	Amount      json.RawMessage `json:"amount"`
	PerformedBy string          `json:"performedBy"`
}

// Append handles POST /ledger/append.
func (h *LedgerHandler) Append(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ip := c.ClientIP()
	entry, err := h.svc.Append(c.Request.Context(), ledger.AppendRequest{
		SubjectID:   req.SubjectID,
		EventType:   req.EventType,
		EventData:   req.EventData,
		Amount:      amount,
		PerformedBy: req.PerformedBy,
		IPAddress:   &ip,
	})
	switch {
	case errors.Is(err, ledger.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ledger.ErrConflictRetryExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent appends exhausted retries; resubmit the event"})
		return
	case err != nil:
		h.logger.Error("append ledger entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append ledger entry"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "entry": entry})
}

// Read handles GET /ledger/read — the subject's chain with an embedded
// verification result. Tampering found here goes to the detector without
// blocking the response.
func (h *LedgerHandler) Read(c *gin.Context) {
	subjectID := c.Query("subjectId")
	if subjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subjectId query parameter is required"})
		return
	}
	ctx := c.Request.Context()

	if c.Query("latest") == "true" {
		entry, err := h.svc.Latest(ctx, subjectID)
		if err != nil {
			h.logger.Error("read latest entry", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
			return
		}
		if entry == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no entries found for this subject"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entry": entry})
		return
	}

	entries, err := h.svc.Entries(ctx, subjectID)
	if err != nil {
		h.logger.Error("read ledger entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		return
	}

	result, err := h.svc.Verify(ctx, subjectID)
	if err != nil {
		h.logger.Error("verify on read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
		return
	}

	if !result.IsValid {
		alert := &tamper.Alert{
			SubjectID:      subjectID,
			TenantID:       optionalQuery(c, "tenantId"),
			DetectedBy:     "system-auto-detection",
			TotalEntries:   result.TotalEntries,
			InvalidEntries: result.InvalidEntries,
			Errors:         result.Errors,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			h.detector.Report(ctx, alert)
		}()
	}

	c.JSON(http.StatusOK, gin.H{
		"subjectId":    subjectID,
		"totalEntries": len(entries),
		"entries":      entries,
		"verification": gin.H{
			"isValid":   result.IsValid,
			"checkedAt": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

type verifyResponse struct {
	SubjectID string `json:"subjectId"`
	*ledger.VerificationResult
	Alert *tamper.Outcome `json:"alert,omitempty"`
}

// Verify handles GET /ledger/verify — verification on demand, with optional
// synchronous alerting so the dispatch outcome is part of the response.
func (h *LedgerHandler) Verify(c *gin.Context) {
	subjectID := c.Query("subjectId")
	if subjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subjectId query parameter is required"})
		return
	}
	ctx := c.Request.Context()

	result, err := h.svc.Verify(ctx, subjectID)
	if err != nil {
		h.logger.Error("verify ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
		return
	}

	resp := verifyResponse{SubjectID: subjectID, VerificationResult: result}

	if !result.IsValid && c.Query("notify") == "true" {
		outcome := h.detector.Report(ctx, &tamper.Alert{
			SubjectID:      subjectID,
			TenantID:       optionalQuery(c, "tenantId"),
			DetectedBy:     PrincipalFrom(c),
			TotalEntries:   result.TotalEntries,
			InvalidEntries: result.InvalidEntries,
			Errors:         result.Errors,
		})
		resp.Alert = &outcome
	}

	c.JSON(http.StatusOK, resp)
}

type batchVerifyRequest struct {
	SubjectIDs []string `json:"subjectIds"`
	Notify     bool     `json:"notify"`
	TenantID   *string  `json:"tenantId"`
}

type batchVerifyItem struct {
	SubjectID  string `json:"subjectId"`
	IsValid    bool   `json:"isValid"`
	ErrorCount int    `json:"errorCount"`
}

// BatchVerify handles POST /ledger/verify/batch.
func (h *LedgerHandler) BatchVerify(c *gin.Context) {
	var req batchVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.SubjectIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subjectIds array is required"})
		return
	}
	ctx := c.Request.Context()

	results := make([]batchVerifyItem, 0, len(req.SubjectIDs))
	tampered := 0
	for _, subjectID := range req.SubjectIDs {
		result, err := h.svc.Verify(ctx, subjectID)
		if err != nil {
			h.logger.Error("batch verify", zap.String("subject_id", subjectID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
			return
		}

		if !result.IsValid {
			tampered++
			if req.Notify {
				h.detector.Report(ctx, &tamper.Alert{
					SubjectID:      subjectID,
					TenantID:       req.TenantID,
					DetectedBy:     "batch-check",
					TotalEntries:   result.TotalEntries,
					InvalidEntries: result.InvalidEntries,
					Errors:         result.Errors,
				})
			}
		}
		results = append(results, batchVerifyItem{
			SubjectID:  subjectID,
			IsValid:    result.IsValid,
			ErrorCount: len(result.Errors),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    len(req.SubjectIDs),
		"valid":    len(req.SubjectIDs) - tampered,
		"tampered": tampered,
		"results":  results,
	})
}

// parseAmount accepts a JSON number or a decimal string, returning its
// canonical decimal-string form. The exact string returned here is what gets
// hashed and stored.
func parseAmount(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, errors.New("amount must be a number or decimal string")
		}
		return &s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return nil, errors.New("amount must be a number or decimal string")
	}
	s := n.String()
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return nil, errors.New("amount must be a number or decimal string")
	}
	return &s, nil
}

func optionalQuery(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}
