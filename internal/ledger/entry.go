package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Genesis is the sentinel previous-hash value carried by the first entry of
// every subject's chain. It is a literal marker, not a computed digest.
const Genesis = "GENESIS"

// Entry is a single audit record in a subject's hash chain. Entries are
// immutable once persisted; the only mutating operation on a chain is append.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	SubjectID    string          `json:"subjectId"`
	SequenceNum  int             `json:"sequenceNumber"`
	PreviousHash string          `json:"previousHash"`
	CurrentHash  string          `json:"currentHash"`
	EventType    string          `json:"eventType"`
	EventData    json.RawMessage `json:"eventData"` // stored in canonical form
	Amount       *string         `json:"amount"`    // decimal string, nil when absent
	PerformedBy  string          `json:"performedBy"`
	Timestamp    time.Time       `json:"timestamp"`
	IPAddress    *string         `json:"ipAddress"`
}

// ComputeHash returns the lowercase-hex SHA-256 digest over the eight
// integrity-relevant fields of an entry, joined with "|". EventData must
// already be in canonical form (see CanonicalizeJSON) for the digest to be
// reproducible across independent implementations.
func ComputeHash(e *Entry) string {
	amount := "null"
	if e.Amount != nil {
		amount = *e.Amount
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s|%s|%s",
		e.SubjectID, e.SequenceNum, e.PreviousHash, e.EventType,
		e.EventData, amount, e.PerformedBy, hashTimestamp(e.Timestamp),
	)
	return hex.EncodeToString(h.Sum(nil))
}

// hashTimestamp renders the timestamp exactly as it is hashed. Timestamps are
// truncated to microseconds at append time so this representation survives a
// round-trip through a timestamptz column.
func hashTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
