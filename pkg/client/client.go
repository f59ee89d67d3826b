// Package client is the LoanProof Go SDK. It talks to a ledgerd instance over
// its JSON/HTTP API: appending loan lifecycle events, reading chains with
// embedded verification, verifying on demand, and triggering sweeps.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Entry mirrors the wire shape of a ledger entry.
type Entry struct {
	ID           string          `json:"id"`
	SubjectID    string          `json:"subjectId"`
	SequenceNum  int             `json:"sequenceNumber"`
	PreviousHash string          `json:"previousHash"`
	CurrentHash  string          `json:"currentHash"`
	EventType    string          `json:"eventType"`
	EventData    json.RawMessage `json:"eventData"`
	Amount       *string         `json:"amount"`
	PerformedBy  string          `json:"performedBy"`
	Timestamp    time.Time       `json:"timestamp"`
	IPAddress    *string         `json:"ipAddress"`
}

// VerificationResult mirrors the wire shape of a verification outcome.
type VerificationResult struct {
	SubjectID      string   `json:"subjectId"`
	IsValid        bool     `json:"isValid"`
	TotalEntries   int      `json:"totalEntries"`
	InvalidEntries []int    `json:"invalidEntries"`
	BrokenChain    bool     `json:"brokenChain"`
	Errors         []string `json:"errors"`
	Alert          *struct {
		Sent       bool      `json:"sent"`
		Recipients []string  `json:"recipients"`
		Timestamp  time.Time `json:"timestamp"`
	} `json:"alert,omitempty"`
}

// ReadResult is the response of a chain read.
type ReadResult struct {
	SubjectID    string   `json:"subjectId"`
	TotalEntries int      `json:"totalEntries"`
	Entries      []*Entry `json:"entries"`
	Verification struct {
		IsValid   bool      `json:"isValid"`
		CheckedAt time.Time `json:"checkedAt"`
	} `json:"verification"`
}

// BatchResult is the response of a batch verification.
type BatchResult struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Tampered int `json:"tampered"`
	Results  []struct {
		SubjectID  string `json:"subjectId"`
		IsValid    bool   `json:"isValid"`
		ErrorCount int    `json:"errorCount"`
	} `json:"results"`
}

// SweepResult is the response of a sweep.
type SweepResult struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Results   struct {
		TotalLoans      int      `json:"totalLoans"`
		ValidLoans      int      `json:"validLoans"`
		TamperedLoans   int      `json:"tamperedLoans"`
		TamperedLoanIDs []string `json:"tamperedLoanIds"`
		Errors          []string `json:"errors"`
	} `json:"results"`
}

// AppendRequest is the payload for Append.
type AppendRequest struct {
	SubjectID   string          `json:"subjectId"`
	EventType   string          `json:"eventType"`
	EventData   json.RawMessage `json:"eventData"`
	Amount      *string         `json:"amount,omitempty"`
	PerformedBy string          `json:"performedBy"`
}

// Client is the LoanProof SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken attaches a bearer token to every request, used for
// principal attribution on verify calls.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearerToken = token }
}

// New creates a Client for the ledgerd instance at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Append records a new event on a subject's chain.
func (c *Client) Append(ctx context.Context, req AppendRequest) (*Entry, error) {
	var resp struct {
		Success bool   `json:"success"`
		Entry   *Entry `json:"entry"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/ledger/append", req, &resp); err != nil {
		return nil, err
	}
	return resp.Entry, nil
}

// Read fetches a subject's full chain with its embedded verification result.
func (c *Client) Read(ctx context.Context, subjectID string) (*ReadResult, error) {
	var result ReadResult
	q := url.Values{"subjectId": {subjectID}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/ledger/read?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Latest fetches only the newest entry of a subject's chain.
func (c *Client) Latest(ctx context.Context, subjectID string) (*Entry, error) {
	var resp struct {
		Entry *Entry `json:"entry"`
	}
	q := url.Values{"subjectId": {subjectID}, "latest": {"true"}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/ledger/read?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entry, nil
}

// Verify runs an on-demand verification. With notify set, tampering triggers
// operator alerts and the dispatch outcome is included in the result.
func (c *Client) Verify(ctx context.Context, subjectID string, notify bool) (*VerificationResult, error) {
	q := url.Values{"subjectId": {subjectID}}
	if notify {
		q.Set("notify", "true")
	}
	var result VerificationResult
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/ledger/verify?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BatchVerify verifies several subjects in one call.
func (c *Client) BatchVerify(ctx context.Context, subjectIDs []string, notify bool) (*BatchResult, error) {
	req := map[string]any{"subjectIds": subjectIDs, "notify": notify}
	var result BatchResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/ledger/verify/batch", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Sweep verifies every subject known to the service. secret is the pre-shared
// sweep secret, not a user credential.
func (c *Client) Sweep(ctx context.Context, secret string) (*SweepResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sweep", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var result SweepResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if respBody != nil {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s: %s (HTTP %d)", req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: HTTP %d", req.URL.Path, resp.StatusCode)
	}
	return body, nil
}
