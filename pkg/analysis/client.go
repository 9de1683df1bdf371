package analysis

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

// AnalyzeRequest asks the document analysis collaborator to score an
// application's uploaded documents. Results come back asynchronously through
// the analysis webhook.
type AnalyzeRequest struct {
	ApplicationID string `json:"application_id"`
	Institution   string `json:"institution"`
	ApplicantName string `json:"applicant_name"`
	StudentID     string `json:"student_id,omitempty"`
	CallbackURL   string `json:"callback_url"`
}

// Config configures the analysis client.
type Config struct {
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration
}

// Client talks to the document analysis collaborator over HTTP.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// NewClient constructs an analysis client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		secret:  cfg.WebhookSecret,
		http:    &http.Client{Timeout: timeout},
	}
}

// RequestAnalysis enqueues a scoring run with the collaborator.
func (c *Client) RequestAnalysis(ctx context.Context, req AnalyzeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analysis", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Signature", Sign(c.secret, body))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "analysis collaborator unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("analysis collaborator returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("analysis collaborator rejected request: status %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 the collaborator stamps on webhook
// deliveries. The webhook handler verifies it before trusting the payload.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time.
func VerifySignature(secret, signature string, body []byte) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
