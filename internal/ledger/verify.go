package ledger

import "fmt"

// VerificationResult is the structured outcome of a chain verification pass.
// An invalid chain is a normal return value, never an error: reporting
// tampering is the expected successful outcome of verification.
type VerificationResult struct {
	IsValid        bool     `json:"isValid"`
	TotalEntries   int      `json:"totalEntries"`
	InvalidEntries []int    `json:"invalidEntries"`
	BrokenChain    bool     `json:"brokenChain"`
	Errors         []string `json:"errors"`
}

// VerifyEntries walks a subject's full entry list, ordered by sequence number
// ascending, and reports every structural or cryptographic defect found. This
// is a report-everything pass, not fail-fast: a defect at one index never
// stops the remaining checks.
//
// An empty list is trivially valid.
func VerifyEntries(entries []*Entry) *VerificationResult {
	result := &VerificationResult{
		IsValid:        true,
		TotalEntries:   len(entries),
		InvalidEntries: []int{},
		Errors:         []string{},
	}

	var prev *Entry
	for i, entry := range entries {
		// Position must equal the stored sequence number; a mismatch means an
		// entry was deleted or injected.
		if entry.SequenceNum != i {
			result.markInvalid(i, fmt.Sprintf(
				"entry %d: incorrect sequence number (expected %d, got %d)",
				i, i, entry.SequenceNum))
		}

		// Recompute the digest from the entry's own stored fields.
		if ComputeHash(entry) != entry.CurrentHash {
			result.markInvalid(i, fmt.Sprintf("entry %d: hash validation failed", i))
		}

		// Linkage is checked against the previous FETCHED entry's stored
		// currentHash, not a recomputed value, so a single corrupted entry is
		// pinpointed instead of cascading down the tail.
		if i == 0 {
			if entry.PreviousHash != Genesis {
				result.BrokenChain = true
				result.markInvalid(i, fmt.Sprintf(
					"entry %d: first entry must have GENESIS previous hash", i))
			}
		} else if entry.PreviousHash != prev.CurrentHash {
			result.BrokenChain = true
			result.markInvalid(i, fmt.Sprintf(
				"entry %d: chain broken - previousHash does not match previous entry's currentHash", i))
		}

		prev = entry
	}
	return result
}

// markInvalid records an error and flags the index, once, regardless of how
// many checks it fails.
func (r *VerificationResult) markInvalid(index int, msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
	for _, existing := range r.InvalidEntries {
		if existing == index {
			return
		}
	}
	r.InvalidEntries = append(r.InvalidEntries, index)
}
