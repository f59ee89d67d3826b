package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loanproof/loanproof/pkg/client"
)

var ctx = context.Background()

// ── Stub server ──────────────────────────────────────────────────────────────

func stubLedgerServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/ledger/append", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["subjectId"] == "" {
			http.Error(w, `{"error":"subjectId is required"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"success": true,
			"entry": map[string]any{
				"id":             "550e8400-e29b-41d4-a716-446655440000",
				"subjectId":      req["subjectId"],
				"sequenceNumber": 0,
				"previousHash":   "GENESIS",
				"currentHash":    "abc123",
				"eventType":      req["eventType"],
				"eventData":      req["eventData"],
				"amount":         req["amount"],
				"performedBy":    req["performedBy"],
				"timestamp":      "2026-05-01T12:00:00.000001Z",
			},
		})
	})

	mux.HandleFunc("/api/v1/ledger/read", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latest") == "true" {
			if r.URL.Query().Get("subjectId") == "EMPTY" {
				http.Error(w, `{"error":"no entries found for this subject"}`, http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"entry": map[string]any{"subjectId": "LOAN-1", "sequenceNumber": 2, "currentHash": "tip"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"subjectId":    r.URL.Query().Get("subjectId"),
			"totalEntries": 2,
			"entries": []map[string]any{
				{"sequenceNumber": 0, "previousHash": "GENESIS", "currentHash": "h0"},
				{"sequenceNumber": 1, "previousHash": "h0", "currentHash": "h1"},
			},
			"verification": map[string]any{"isValid": true, "checkedAt": "2026-05-01T12:00:00Z"},
		})
	})

	mux.HandleFunc("/api/v1/ledger/verify", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"subjectId":      r.URL.Query().Get("subjectId"),
			"isValid":        false,
			"totalEntries":   3,
			"invalidEntries": []int{1},
			"brokenChain":    false,
			"errors":         []string{"entry 1: hash validation failed"},
		}
		if r.URL.Query().Get("notify") == "true" {
			resp["alert"] = map[string]any{
				"sent":       true,
				"recipients": []string{"security@loanproof.dev"},
				"timestamp":  "2026-05-01T12:00:00Z",
			}
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	})

	mux.HandleFunc("/api/v1/ledger/verify/batch", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"total":    2,
			"valid":    1,
			"tampered": 1,
			"results": []map[string]any{
				{"subjectId": "LOAN-OK", "isValid": true, "errorCount": 0},
				{"subjectId": "LOAN-BAD", "isValid": false, "errorCount": 2},
			},
		})
	})

	mux.HandleFunc("/api/v1/sweep", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sweep-secret" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"success":   true,
			"timestamp": "2026-05-01T12:00:00Z",
			"results": map[string]any{
				"totalLoans":      5,
				"validLoans":      4,
				"tamperedLoans":   1,
				"tamperedLoanIds": []string{"LOAN-BAD"},
				"errors":          []string{},
			},
		})
	})

	return httptest.NewServer(mux)
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestAppend(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()
	c := client.New(srv.URL)

	amount := "1500.00"
	entry, err := c.Append(ctx, client.AppendRequest{
		SubjectID:   "LOAN-1",
		EventType:   "payment_received",
		EventData:   json.RawMessage(`{"method":"ach"}`),
		Amount:      &amount,
		PerformedBy: "officer@bank.example",
	})
	if err != nil {
		t.Fatal(err)
	}
	if entry.SubjectID != "LOAN-1" || entry.SequenceNum != 0 || entry.PreviousHash != "GENESIS" {
		t.Errorf("entry: %+v", entry)
	}
	if entry.Amount == nil || *entry.Amount != "1500.00" {
		t.Errorf("amount: %v", entry.Amount)
	}
}

func TestAppend_apiError(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()
	c := client.New(srv.URL)

	_, err := c.Append(ctx, client.AppendRequest{EventType: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "subjectId is required") {
		t.Errorf("error should carry the server message: %v", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestRead(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()
	c := client.New(srv.URL)

	result, err := c.Read(ctx, "LOAN-1")
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalEntries != 2 || len(result.Entries) != 2 {
		t.Errorf("result: %+v", result)
	}
	if !result.Verification.IsValid {
		t.Error("verification should be valid")
	}
}

func TestRead_escapesSubjectID(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()
	c := client.New(srv.URL)

	// Hostile-looking IDs must arrive as a single decoded query value, not
	// smuggle extra parameters.
	id := "LOAN 1&notify=true#x"
	result, err := c.Read(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if result.SubjectID != id {
		t.Errorf("subjectId: got %q, want %q", result.SubjectID, id)
	}
}

func TestLatest_notFound(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()
	c := client.New(srv.URL)

	if _, err := c.Latest(ctx, "EMPTY"); err == nil {
		t.Error("expected not-found error")
	}
	entry, err := c.Latest(ctx, "LOAN-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.SequenceNum != 2 {
		t.Errorf("latest: %+v", entry)
	}
}

func TestVerify_withNotify(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()
	c := client.New(srv.URL)

	result, err := c.Verify(ctx, "LOAN-1", true)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsValid {
		t.Error("stub reports tampering")
	}
	if len(result.InvalidEntries) != 1 || result.InvalidEntries[0] != 1 {
		t.Errorf("invalidEntries: %v", result.InvalidEntries)
	}
	if result.Alert == nil || !result.Alert.Sent {
		t.Errorf("alert: %+v", result.Alert)
	}

	// Without notify the alert field stays nil.
	quiet, err := c.Verify(ctx, "LOAN-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if quiet.Alert != nil {
		t.Error("alert must be nil without notify")
	}
}

func TestBatchVerify(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()
	c := client.New(srv.URL)

	result, err := c.BatchVerify(ctx, []string{"LOAN-OK", "LOAN-BAD"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 2 || result.Valid != 1 || result.Tampered != 1 {
		t.Errorf("batch: %+v", result)
	}
}

func TestSweep(t *testing.T) {
	srv := stubLedgerServer(t)
	defer srv.Close()
	c := client.New(srv.URL)

	if _, err := c.Sweep(ctx, "wrong"); err == nil {
		t.Error("expected unauthorized error")
	}

	result, err := c.Sweep(ctx, "sweep-secret")
	if err != nil {
		t.Fatal(err)
	}
	if result.Results.TotalLoans != 5 || result.Results.TamperedLoans != 1 {
		t.Errorf("sweep: %+v", result.Results)
	}
}
