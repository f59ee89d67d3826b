package ledger

import (
	"context"
	"errors"
)

// ErrDuplicateSequence is returned by Store.Insert when an entry with the same
// (subjectId, sequenceNumber) already exists. The append service retries on it.
var ErrDuplicateSequence = errors.New("duplicate sequence number for subject")

// Store is durable, ordered, append-only storage for ledger entries.
// Both MemoryStore and PostgresStore implement this interface.
type Store interface {
	// Insert persists a fully built entry under the (subjectId, sequenceNumber)
	// uniqueness constraint. Returns ErrDuplicateSequence on conflict.
	Insert(ctx context.Context, e *Entry) error

	// Last returns the entry with the highest sequence number for the subject,
	// or (nil, nil) when the subject has no entries.
	Last(ctx context.Context, subjectID string) (*Entry, error)

	// List returns all entries for the subject ordered by sequence number
	// ascending.
	List(ctx context.Context, subjectID string) ([]*Entry, error)

	// Subjects returns every distinct subject id known to the store.
	Subjects(ctx context.Context) ([]string, error)
}
