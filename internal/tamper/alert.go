// Package tamper records integrity findings and notifies operators.
//
// The detector is deliberately decoupled from the ledger it audits: findings
// go to their own store, and notification failures are logged, never
// propagated. Repeated detection of the same known tamper re-alerts;
// deduplication is left to downstream consumers.
package tamper

import (
	"time"

	"github.com/google/uuid"
)

// Alert is a single tamper finding.
type Alert struct {
	ID             uuid.UUID `json:"id"`
	SubjectID      string    `json:"subjectId"`
	TenantID       *string   `json:"tenantId"`
	DetectedAt     time.Time `json:"detectedAt"`
	DetectedBy     string    `json:"detectedBy"`
	TotalEntries   int       `json:"totalEntries"`
	InvalidEntries []int     `json:"invalidEntries"`
	Errors         []string  `json:"errors"`
}

// Outcome reports what the dispatcher managed to do for one alert.
type Outcome struct {
	Sent       bool      `json:"sent"`
	Recipients []string  `json:"recipients"`
	Timestamp  time.Time `json:"timestamp"`
}
