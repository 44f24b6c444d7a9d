package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the configuration for connecting to the Subgate platform.
type Config struct {
	APIURL        string // Base URL, e.g. "http://localhost:8080"
	APIKey        string // API key, e.g. "sk_..."
	ExternalAppID string // Application's external identifier
}

// SubgateClient is a pure HTTP client for the Subgate platform API.
type SubgateClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewSubgateClient creates a new client for the Subgate platform.
func NewSubgateClient(cfg Config) *SubgateClient {
	return &SubgateClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// envelope is the uniform response wrapper every Subgate endpoint uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the data
// portion of the response envelope.
func (c *SubgateClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
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

	req.Header.Set("X-API-Key", c.cfg.APIKey)
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

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
		}
		return json.RawMessage(respBody), nil
	}

	if resp.StatusCode >= 400 || !env.Success {
		if env.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, env.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return env.Data, nil
}

// ListPlans returns the active plan catalog.
func (c *SubgateClient) ListPlans(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/plans", nil, nil)
}

// GetTenant looks up a tenant and its subscriptions by owner identity.
func (c *SubgateClient) GetTenant(ctx context.Context, ownerUserID, ownerEmail string) (json.RawMessage, error) {
	q := url.Values{}
	if ownerUserID != "" {
		q.Set("owner_user_id", ownerUserID)
	}
	if ownerEmail != "" {
		q.Set("owner_email", ownerEmail)
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/tenants/"+c.cfg.ExternalAppID, q, nil)
}

// ValidateUser resolves a user to their tenant, subscription, and license.
func (c *SubgateClient) ValidateUser(ctx context.Context, externalUserID, userEmail string) (json.RawMessage, error) {
	body := map[string]string{
		"external_app_id": c.cfg.ExternalAppID,
	}
	if externalUserID != "" {
		body["external_user_id"] = externalUserID
	}
	if userEmail != "" {
		body["user_email"] = userEmail
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/validate-user", nil, body)
}

// ValidateLicense checks a license token by JTI.
func (c *SubgateClient) ValidateLicense(ctx context.Context, jti string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/licenses/validate", nil, map[string]string{"jti": jti})
}

// CheckFeature checks whether a license grants a specific feature.
func (c *SubgateClient) CheckFeature(ctx context.Context, jti, feature string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("jti", jti)
	q.Set("feature", feature)
	return c.doRequest(ctx, http.MethodGet, "/v1/check-feature", q, nil)
}

// RecordUsage appends a usage record for a tenant metric.
func (c *SubgateClient) RecordUsage(ctx context.Context, tenantID, metric string, value float64) (json.RawMessage, error) {
	body := map[string]any{
		"tenant_id": tenantID,
		"metric":    metric,
		"value":     value,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/record-usage", nil, body)
}
