package polish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inkwell-notes/inkwell/internal/config"
	"github.com/inkwell-notes/inkwell/internal/metrics"
)

const (
	anthropicVersion = "2023-06-01"
	maxErrorBody     = 512
)

// Client performs exactly one call to the upstream text-generation endpoint
// per admitted request. It never retries and never touches the quota ledger;
// settlement happens only after the response normalizes successfully.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewClient(cfg config.AIConfig) *Client {
	// Keys pasted from env files sometimes carry a trailing "# comment".
	key := cfg.APIKey
	if i := strings.Index(key, "#"); i >= 0 {
		key = key[:i]
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(key),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate sends the styled request and returns the raw response payload.
// The payload shape varies by provider; Normalize decodes it. Any non-2xx
// response is an UpstreamError carrying the status and a truncated body.
func (c *Client) Generate(ctx context.Context, content string, style Style, instruction string) ([]byte, error) {
	userContent := content
	if style == StyleCustom && instruction != "" {
		// Keep the instruction and the subject text visibly separated so
		// the model cannot mistake one for the other.
		userContent = "Instruction: " + instruction + "\n\nContent to polish:\n" + content
	}

	body, err := json.Marshal(generateRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    style.SystemPrompt(),
		Messages:  []message{{Role: "user", Content: userContent}},
	})
	if err != nil {
		return nil, fmt.Errorf("polish: encoding generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("polish: building generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("polish: calling generation endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polish: reading generation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}

	return raw, nil
}
