package ledger_test

import (
	"errors"
	"testing"

	"github.com/loanproof/loanproof/internal/ledger"
)

func TestMemoryStore_duplicateSequenceRejected(t *testing.T) {
	store := ledger.NewMemoryStore()
	chain := buildChain(t, "LOAN-1", 1)

	if err := store.Insert(ctx, chain[0]); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, chain[0]); !errors.Is(err, ledger.ErrDuplicateSequence) {
		t.Errorf("got %v, want ErrDuplicateSequence", err)
	}
}

func TestMemoryStore_listReturnsCopies(t *testing.T) {
	store := ledger.NewMemoryStore()
	for _, e := range buildChain(t, "LOAN-1", 2) {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	first, _ := store.List(ctx, "LOAN-1")
	first[0].EventType = "mutated"

	second, _ := store.List(ctx, "LOAN-1")
	if second[0].EventType == "mutated" {
		t.Error("List must return copies, not shared pointers")
	}
}

func TestMemoryStore_subjects(t *testing.T) {
	store := ledger.NewMemoryStore()
	for _, id := range []string{"LOAN-B", "LOAN-A"} {
		for _, e := range buildChain(t, id, 1) {
			if err := store.Insert(ctx, e); err != nil {
				t.Fatal(err)
			}
		}
	}

	subjects, err := store.Subjects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(subjects) != 2 || subjects[0] != "LOAN-A" || subjects[1] != "LOAN-B" {
		t.Errorf("subjects: got %v, want sorted [LOAN-A LOAN-B]", subjects)
	}
}
