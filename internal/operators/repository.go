package operators

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides persistence for operators.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new operator Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert inserts an operator or updates the existing row with the same email.
func (r *Repository) Upsert(ctx context.Context, op *Operator) error {
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO operators (id, name, email, tenant_id, is_global, active, verified, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (email) DO UPDATE SET
		   name = EXCLUDED.name,
		   tenant_id = EXCLUDED.tenant_id,
		   is_global = EXCLUDED.is_global,
		   active = EXCLUDED.active,
		   verified = EXCLUDED.verified`,
		op.ID, op.Name, op.Email, op.TenantID, op.Global, op.Active, op.Verified, op.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert operator %s: %w", op.Email, err)
	}
	return nil
}

// AlertRecipients returns the email addresses that should receive a tamper
// alert: every active, verified global operator, plus operators scoped to the
// given tenant when one is known.
func (r *Repository) AlertRecipients(ctx context.Context, tenantID *string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT email FROM operators
		 WHERE active AND verified
		   AND (is_global OR ($1::text IS NOT NULL AND tenant_id = $1))
		 ORDER BY email`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("query alert recipients: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan operator email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
