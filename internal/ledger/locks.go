package ledger

import "sync"

// subjectLocks serializes the read-compute-write append sequence per subject.
// Lock records are refcounted and removed once the last holder releases, so
// the map does not grow with the number of subjects ever seen.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*subjectLock
}

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{locks: make(map[string]*subjectLock)}
}

// acquire blocks until the caller holds the lock for key.
func (s *subjectLocks) acquire(key string) *subjectLock {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &subjectLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

// release unlocks the key and drops the record when no other caller is waiting.
func (s *subjectLocks) release(key string, l *subjectLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}
