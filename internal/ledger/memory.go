package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory, thread-safe Store implementation. It is
// primarily useful for testing and for single-process deployments that do not
// require durable persistence across restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string][]*Entry // per subject, sorted by sequence number
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]*Entry)}
}

// Insert implements Store.
func (m *MemoryStore) Insert(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.chains[e.SubjectID]
	for _, existing := range chain {
		if existing.SequenceNum == e.SequenceNum {
			return ErrDuplicateSequence
		}
	}

	stored := *e
	chain = append(chain, &stored)
	sort.Slice(chain, func(i, j int) bool {
		return chain[i].SequenceNum < chain[j].SequenceNum
	})
	m.chains[e.SubjectID] = chain
	return nil
}

// Last implements Store.
func (m *MemoryStore) Last(_ context.Context, subjectID string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.chains[subjectID]
	if len(chain) == 0 {
		return nil, nil
	}
	last := *chain[len(chain)-1]
	return &last, nil
}

// List implements Store. Returned entries are copies so callers cannot mutate
// stored state.
func (m *MemoryStore) List(_ context.Context, subjectID string) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.chains[subjectID]
	out := make([]*Entry, len(chain))
	for i, e := range chain {
		entry := *e
		out[i] = &entry
	}
	return out, nil
}

// Subjects implements Store.
func (m *MemoryStore) Subjects(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.chains))
	for id := range m.chains {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
