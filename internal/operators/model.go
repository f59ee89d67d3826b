package operators

import (
	"time"

	"github.com/google/uuid"
)

// Operator is someone who receives tamper alerts. Global operators are
// notified about every subject; tenant-scoped operators only about subjects
// belonging to their tenant.
type Operator struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	TenantID  *string   `json:"tenantId"` // nil for global operators
	Global    bool      `json:"global"`
	Active    bool      `json:"active"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}
