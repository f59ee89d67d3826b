package ledger_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loanproof/loanproof/internal/ledger"
)

func sampleEntry() *ledger.Entry {
	amount := "1500.00"
	return &ledger.Entry{
		ID:           uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		SubjectID:    "LOAN-123",
		SequenceNum:  0,
		PreviousHash: ledger.Genesis,
		EventType:    "payment_received",
		EventData:    json.RawMessage(`{"method":"ach","reference":"TXN-9"}`),
		Amount:       &amount,
		PerformedBy:  "officer@bank.example",
		Timestamp:    time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
	}
}

func TestComputeHash_deterministic(t *testing.T) {
	e := sampleEntry()
	h1 := ledger.ComputeHash(e)
	h2 := ledger.ComputeHash(e)
	if h1 != h2 {
		t.Errorf("hash not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 != strings.ToLower(h1) {
		t.Errorf("hash must be lowercase hex: %q", h1)
	}
}

func TestComputeHash_changesWithEveryField(t *testing.T) {
	base := ledger.ComputeHash(sampleEntry())

	mutations := map[string]func(e *ledger.Entry){
		"subjectId":    func(e *ledger.Entry) { e.SubjectID = "LOAN-124" },
		"sequenceNum":  func(e *ledger.Entry) { e.SequenceNum = 1 },
		"previousHash": func(e *ledger.Entry) { e.PreviousHash = "abc" },
		"eventType":    func(e *ledger.Entry) { e.EventType = "payment_reversed" },
		"eventData":    func(e *ledger.Entry) { e.EventData = json.RawMessage(`{"method":"wire","reference":"TXN-9"}`) },
		"amount":       func(e *ledger.Entry) { v := "1500.01"; e.Amount = &v },
		"performedBy":  func(e *ledger.Entry) { e.PerformedBy = "intruder@evil.example" },
		"timestamp":    func(e *ledger.Entry) { e.Timestamp = e.Timestamp.Add(time.Microsecond) },
	}
	for name, mutate := range mutations {
		e := sampleEntry()
		mutate(e)
		if ledger.ComputeHash(e) == base {
			t.Errorf("mutating %s did not change the hash", name)
		}
	}
}

func TestComputeHash_idDoesNotAffectHash(t *testing.T) {
	e := sampleEntry()
	base := ledger.ComputeHash(e)
	e.ID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	if ledger.ComputeHash(e) != base {
		t.Error("entry ID must not participate in the hash")
	}
}

func TestComputeHash_nilAmountHashesAsNull(t *testing.T) {
	e := sampleEntry()
	e.Amount = nil
	withNil := ledger.ComputeHash(e)

	null := "null"
	e.Amount = &null
	withLiteral := ledger.ComputeHash(e)

	if withNil != withLiteral {
		t.Error(`nil amount must hash identically to the literal string "null"`)
	}
}

func TestComputeHash_timestampSurvivesMicrosecondTruncation(t *testing.T) {
	e := sampleEntry()
	e.Timestamp = time.Now().UTC().Truncate(time.Microsecond)
	before := ledger.ComputeHash(e)

	// Simulate a round-trip through a timestamptz column, which keeps
	// microsecond precision.
	e.Timestamp = e.Timestamp.Truncate(time.Microsecond)
	if ledger.ComputeHash(e) != before {
		t.Error("hash changed after microsecond round-trip")
	}
}
