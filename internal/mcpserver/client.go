package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the connection settings for the Sentinel engine API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// SentinelClient is a pure HTTP client for the engine API.
type SentinelClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewSentinelClient creates a new client for the engine API.
func NewSentinelClient(cfg Config) *SentinelClient {
	return &SentinelClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *SentinelClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// 202 is a decided-but-not-committed transfer, not an error.
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ListScenarios returns the attack scenario catalog.
func (c *SentinelClient) ListScenarios(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/scenarios", nil, nil)
}

// RunScenario starts a scenario and waits for it to finish, returning
// the run record and the live feed lines.
func (c *SentinelClient) RunScenario(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/api/v1/scenarios/"+id+"/run", nil, nil)
}

// GetAlerts lists fraud alerts, optionally filtered by status.
func (c *SentinelClient) GetAlerts(ctx context.Context, status string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/api/v1/alerts", q, nil)
}

// UpdateAlertStatus moves an alert through its review lifecycle.
func (c *SentinelClient) UpdateAlertStatus(ctx context.Context, id, status string) (json.RawMessage, error) {
	body := map[string]string{"status": status}
	return c.doRequest(ctx, http.MethodPut, "/api/v1/alerts/"+id+"/status", nil, body)
}

// Correlate checks observables against the threat intel index.
func (c *SentinelClient) Correlate(ctx context.Context, ip, device, account, email string) (json.RawMessage, error) {
	body := map[string]string{}
	if ip != "" {
		body["ip"] = ip
	}
	if device != "" {
		body["device"] = device
	}
	if account != "" {
		body["account"] = account
	}
	if email != "" {
		body["email"] = email
	}
	return c.doRequest(ctx, http.MethodPost, "/api/v1/intel/correlate", nil, body)
}

// GetControls returns the full security control set.
func (c *SentinelClient) GetControls(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/controls", nil, nil)
}

// ToggleControl flips one control on or off.
func (c *SentinelClient) ToggleControl(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/api/v1/controls/"+id+"/toggle", nil, nil)
}

// Transfer submits a transfer attempt through the decision pipeline.
func (c *SentinelClient) Transfer(ctx context.Context, from, to, amount, ip, device, geo string) (json.RawMessage, error) {
	body := map[string]any{
		"from_account": from,
		"to_account":   to,
		"amount":       amount,
		"context": map[string]string{
			"ip":     ip,
			"device": device,
			"geo":    geo,
		},
	}
	return c.doRequest(ctx, http.MethodPost, "/api/v1/transfers", nil, body)
}

// DetectionStats returns rule and model detection quality metrics.
func (c *SentinelClient) DetectionStats(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/stats/detection", nil, nil)
}
