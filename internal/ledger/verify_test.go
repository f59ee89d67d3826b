package ledger_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loanproof/loanproof/internal/ledger"
)

// buildChain constructs a well-formed chain of n entries for subjectID.
func buildChain(t *testing.T, subjectID string, n int) []*ledger.Entry {
	t.Helper()

	entries := make([]*ledger.Entry, 0, n)
	prevHash := ledger.Genesis
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		e := &ledger.Entry{
			ID:           uuid.New(),
			SubjectID:    subjectID,
			SequenceNum:  i,
			PreviousHash: prevHash,
			EventType:    "payment_received",
			EventData:    json.RawMessage(fmt.Sprintf(`{"installment":%d}`, i)),
			PerformedBy:  "system",
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
		}
		e.CurrentHash = ledger.ComputeHash(e)
		entries = append(entries, e)
		prevHash = e.CurrentHash
	}
	return entries
}

func TestVerifyEntries_validChain(t *testing.T) {
	result := ledger.VerifyEntries(buildChain(t, "LOAN-1", 3))

	if !result.IsValid {
		t.Errorf("valid chain reported invalid: %v", result.Errors)
	}
	if result.TotalEntries != 3 {
		t.Errorf("totalEntries: got %d, want 3", result.TotalEntries)
	}
	if result.BrokenChain {
		t.Error("brokenChain set on valid chain")
	}
	if len(result.InvalidEntries) != 0 || len(result.Errors) != 0 {
		t.Errorf("unexpected findings: %v %v", result.InvalidEntries, result.Errors)
	}
}

func TestVerifyEntries_emptyChainIsValid(t *testing.T) {
	result := ledger.VerifyEntries(nil)

	if !result.IsValid {
		t.Error("empty chain must be valid")
	}
	if result.TotalEntries != 0 {
		t.Errorf("totalEntries: got %d, want 0", result.TotalEntries)
	}
	if result.InvalidEntries == nil || result.Errors == nil {
		t.Error("result slices must be non-nil so they serialize as [] not null")
	}
}

func TestVerifyEntries_tamperedEventData(t *testing.T) {
	chain := buildChain(t, "LOAN-1", 3)
	chain[1].EventData = json.RawMessage(`{"installment":99}`)

	result := ledger.VerifyEntries(chain)

	if result.IsValid {
		t.Fatal("tampered chain reported valid")
	}
	if len(result.InvalidEntries) != 1 || result.InvalidEntries[0] != 1 {
		t.Errorf("invalidEntries: got %v, want [1]", result.InvalidEntries)
	}
	found := false
	for _, msg := range result.Errors {
		if strings.Contains(msg, "entry 1: hash validation failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing hash validation error, got %v", result.Errors)
	}
	// Entries 0 and 2 are intact; their own hashes and links still check out
	// against stored values, so they must not be flagged.
	for _, idx := range result.InvalidEntries {
		if idx != 1 {
			t.Errorf("entry %d incorrectly flagged", idx)
		}
	}
}

func TestVerifyEntries_brokenLink(t *testing.T) {
	chain := buildChain(t, "LOAN-1", 3)
	chain[2].PreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"
	chain[2].CurrentHash = ledger.ComputeHash(chain[2]) // hash itself is consistent

	result := ledger.VerifyEntries(chain)

	if result.IsValid {
		t.Fatal("chain with broken link reported valid")
	}
	if !result.BrokenChain {
		t.Error("brokenChain not set")
	}
	if len(result.InvalidEntries) != 1 || result.InvalidEntries[0] != 2 {
		t.Errorf("invalidEntries: got %v, want [2]", result.InvalidEntries)
	}
}

func TestVerifyEntries_firstEntryMustBeGenesis(t *testing.T) {
	chain := buildChain(t, "LOAN-1", 2)
	chain[0].PreviousHash = "deadbeef"
	chain[0].CurrentHash = ledger.ComputeHash(chain[0])
	// Re-link entry 1 so only the genesis violation remains.
	chain[1].PreviousHash = chain[0].CurrentHash
	chain[1].CurrentHash = ledger.ComputeHash(chain[1])

	result := ledger.VerifyEntries(chain)

	if result.IsValid || !result.BrokenChain {
		t.Fatalf("expected broken chain, got %+v", result)
	}
	found := false
	for _, msg := range result.Errors {
		if strings.Contains(msg, "first entry must have GENESIS previous hash") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing genesis error, got %v", result.Errors)
	}
}

func TestVerifyEntries_deletedEntryDetected(t *testing.T) {
	chain := buildChain(t, "LOAN-1", 4)
	// Delete entry 1; the survivors keep their stored sequence numbers.
	chain = append(chain[:1], chain[2:]...)

	result := ledger.VerifyEntries(chain)

	if result.IsValid {
		t.Fatal("chain with deleted entry reported valid")
	}
	found := false
	for _, msg := range result.Errors {
		if strings.Contains(msg, "incorrect sequence number (expected 1, got 2)") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing sequence error, got %v", result.Errors)
	}
	if !result.BrokenChain {
		t.Error("deleting a middle entry also breaks the link, brokenChain must be set")
	}
}

func TestVerifyEntries_singleIndexFlaggedOnce(t *testing.T) {
	chain := buildChain(t, "LOAN-1", 2)
	// Corrupt the stored previousHash without recomputing currentHash: the
	// entry now fails both the hash recompute and the link check.
	chain[1].PreviousHash = "deadbeef"

	result := ledger.VerifyEntries(chain)

	if len(result.InvalidEntries) != 1 {
		t.Errorf("index flagged more than once: %v", result.InvalidEntries)
	}
	if len(result.Errors) < 2 {
		t.Errorf("expected two error messages, got %v", result.Errors)
	}
}
