package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// HTTPClient calls a node's processing endpoint over HTTP.
type HTTPClient struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient creates a client posting to baseURL + "/process".
// Deadlines come from the caller's context; timeout only caps runaway calls.
func NewHTTPClient(name, baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		name:     name,
		endpoint: strings.TrimRight(baseURL, "/") + "/process",
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type processRequest struct {
	ID       string `json:"id"`
	CallerID string `json:"caller_id"`
	Input    string `json:"input"`
}

type processResponse struct {
	Output    string                `json:"output"`
	LatencyMS float64               `json:"latency_ms,omitempty"`
	Usage     *domain.ResourceUsage `json:"usage,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// Process sends the request and decodes the node's answer.
func (c *HTTPClient) Process(ctx context.Context, req domain.Request) (domain.Result, error) {
	jsonData, err := json.Marshal(processRequest{ID: req.ID, CallerID: req.CallerID, Input: req.Input})
	if err != nil {
		return domain.Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return domain.Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Result{}, fmt.Errorf("process call: %w", err)
	}
	defer resp.Body.Close()

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.Result{}, fmt.Errorf("rate limited (429), retry after: %s", resp.Header.Get("Retry-After"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return domain.Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Result{}, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out processResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.Result{}, fmt.Errorf("parse response: %w", err)
	}
	if out.Error != "" {
		return domain.Result{}, fmt.Errorf("node error: %s", out.Error)
	}

	return domain.Result{
		RequestID: req.ID,
		NodeID:    c.name,
		Output:    out.Output,
		Latency:   time.Duration(out.LatencyMS * float64(time.Millisecond)),
		Usage:     out.Usage,
	}, nil
}
