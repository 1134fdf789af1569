package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type HTTPConfig struct {
	URL          string
	APIKey       string // sent as a bearer token when set
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// HTTP posts the summary as JSON to a remote inference service. A 204, a
// null decision or is_decision=false all mean no decision.
type HTTP struct {
	client *retryablehttp.Client
	url    string
	apiKey string
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("inference url is required")
	}

	client := retryablehttp.NewClient()
	client.Logger = slog.Default()
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	if cfg.RetryMax > 0 {
		client.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}

	return &HTTP{
		client: client,
		url:    cfg.URL,
		apiKey: cfg.APIKey,
	}, nil
}

type httpAnswer struct {
	IsDecision *bool     `json:"is_decision"`
	Decision   *Decision `json:"decision"`
}

func (h *HTTP) Infer(ctx context.Context, summary Summary) (*Decision, error) {
	body, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, h.url, body)
	if err != nil {
		return nil, fmt.Errorf("building inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling inference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading inference response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, truncate(payload, 200))
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}

	var answer httpAnswer
	if err := json.Unmarshal(payload, &answer); err != nil {
		return nil, fmt.Errorf("decoding inference response: %w", err)
	}

	if answer.Decision == nil || (answer.IsDecision != nil && !*answer.IsDecision) {
		return nil, nil
	}

	answer.Decision.normalize()
	return answer.Decision, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
