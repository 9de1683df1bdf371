package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

// MintRequest asks the ledger collaborator to mint a credential certificate.
type MintRequest struct {
	ApplicationID string          `json:"application_id"`
	Recipient     string          `json:"recipient"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// MintResult is the on-chain outcome of a successful mint.
type MintResult struct {
	TokenAddress string `json:"token_address"`
	TokenID      string `json:"token_id"`
	TxHash       string `json:"tx_hash"`
	MetadataURI  string `json:"metadata_uri,omitempty"`
}

// Config configures the ledger client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the certificate ledger collaborator over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient constructs a ledger client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Mint submits a mint request and returns the minted token coordinates.
// Transport failures and 5xx responses map to UpstreamUnavailable so the
// caller can distinguish retryable failures from permanent ones.
func (c *Client) Mint(ctx context.Context, req MintRequest) (*MintResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal mint request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/certificates/mint", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build mint request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "ledger collaborator unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("ledger collaborator returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ledger rejected mint request: status %d: %s", resp.StatusCode, payload)
	}

	var result MintResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "malformed ledger response")
	}
	if result.TokenAddress == "" || result.TxHash == "" {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "ledger response missing token coordinates")
	}
	return &result, nil
}
