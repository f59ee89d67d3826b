package tamper

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FindingStore durably records tamper findings. Its durability must not
// depend on the integrity of the ledger being checked, so findings live in
// their own table (or process memory), never in the audited chain.
type FindingStore interface {
	Record(ctx context.Context, alert *Alert) error
	Recent(ctx context.Context, limit int) ([]*Alert, error)
}

// PostgresFindings persists findings to the tamper_findings table.
type PostgresFindings struct {
	db *pgxpool.Pool
}

// NewPostgresFindings creates a PostgresFindings store.
func NewPostgresFindings(db *pgxpool.Pool) *PostgresFindings {
	return &PostgresFindings{db: db}
}

// Record implements FindingStore.
func (s *PostgresFindings) Record(ctx context.Context, alert *Alert) error {
	invalid := make([]int64, len(alert.InvalidEntries))
	for i, idx := range alert.InvalidEntries {
		invalid[i] = int64(idx)
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO tamper_findings
		   (id, subject_id, tenant_id, detected_at, detected_by, total_entries, invalid_entries, errors)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		alert.ID, alert.SubjectID, alert.TenantID, alert.DetectedAt,
		alert.DetectedBy, alert.TotalEntries, invalid, alert.Errors,
	)
	if err != nil {
		return fmt.Errorf("record tamper finding: %w", err)
	}
	return nil
}

// Recent implements FindingStore, newest first.
func (s *PostgresFindings) Recent(ctx context.Context, limit int) ([]*Alert, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, subject_id, tenant_id, detected_at, detected_by, total_entries, invalid_entries, errors
		 FROM tamper_findings ORDER BY detected_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query tamper findings: %w", err)
	}
	defer rows.Close()

	findings := make([]*Alert, 0)
	for rows.Next() {
		a := &Alert{}
		var invalid []int64
		if err := rows.Scan(
			&a.ID, &a.SubjectID, &a.TenantID, &a.DetectedAt,
			&a.DetectedBy, &a.TotalEntries, &invalid, &a.Errors,
		); err != nil {
			return nil, fmt.Errorf("scan tamper finding: %w", err)
		}
		a.InvalidEntries = make([]int, len(invalid))
		for i, idx := range invalid {
			a.InvalidEntries[i] = int(idx)
		}
		findings = append(findings, a)
	}
	return findings, rows.Err()
}

// MemoryFindings is an in-memory FindingStore for tests and development.
type MemoryFindings struct {
	mu       sync.RWMutex
	findings []*Alert
}

// NewMemoryFindings creates an empty MemoryFindings store.
func NewMemoryFindings() *MemoryFindings {
	return &MemoryFindings{}
}

// Record implements FindingStore.
func (s *MemoryFindings) Record(_ context.Context, alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *alert
	s.findings = append(s.findings, &stored)
	return nil
}

// Recent implements FindingStore, newest first.
func (s *MemoryFindings) Recent(_ context.Context, limit int) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Alert, 0, limit)
	for i := len(s.findings) - 1; i >= 0 && len(out) < limit; i-- {
		finding := *s.findings[i]
		out = append(out, &finding)
	}
	return out, nil
}
