package operators

import (
	"context"
	"sort"
	"sync"
)

// MemoryDirectory is an in-memory operator directory for tests and
// single-process development setups.
type MemoryDirectory struct {
	mu  sync.RWMutex
	ops []Operator
}

// NewMemoryDirectory creates an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{}
}

// Add registers an operator.
func (d *MemoryDirectory) Add(op Operator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, op)
}

// AlertRecipients mirrors Repository.AlertRecipients.
func (d *MemoryDirectory) AlertRecipients(_ context.Context, tenantID *string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var emails []string
	for _, op := range d.ops {
		if !op.Active || !op.Verified {
			continue
		}
		if op.Global {
			emails = append(emails, op.Email)
			continue
		}
		if tenantID != nil && op.TenantID != nil && *op.TenantID == *tenantID {
			emails = append(emails, op.Email)
		}
	}
	sort.Strings(emails)
	return emails, nil
}
