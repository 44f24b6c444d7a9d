package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	cfg := Config{
		APIURL:        ts.URL,
		APIKey:        "sk_test_key",
		ExternalAppID: "myapp",
	}
	client := NewSubgateClient(cfg)
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func ok(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_APIKeyHeader(t *testing.T) {
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		ok(w, []any{})
	}))
	defer ts.Close()

	client := NewSubgateClient(Config{APIURL: ts.URL, APIKey: "sk_secret123", ExternalAppID: "myapp"})
	_, err := client.ListPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk_secret123", gotKey)
}

func TestClient_DoRequest_EnvelopeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "unauthorized",
			"message": "Invalid API key",
		})
	}))
	defer ts.Close()

	client := NewSubgateClient(Config{APIURL: ts.URL, APIKey: "bad", ExternalAppID: "myapp"})
	_, err := client.ListPlans(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestClient_DoRequest_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewSubgateClient(Config{APIURL: ts.URL, APIKey: "k", ExternalAppID: "myapp"})
	_, err := client.ListPlans(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_GetTenant_QueryParams(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tenants/myapp", r.URL.Path)
		assert.Equal(t, "u_1", r.URL.Query().Get("owner_user_id"))
		ok(w, map[string]any{"tenant": map[string]any{"id": "ten_1", "name": "Acme", "status": "active"}})
	}))
	defer ts.Close()

	client := NewSubgateClient(Config{APIURL: ts.URL, APIKey: "k", ExternalAppID: "myapp"})
	_, err := client.GetTenant(context.Background(), "u_1", "")
	require.NoError(t, err)
}

func TestClient_ValidateUser_IncludesAppID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "myapp", body["external_app_id"])
		assert.Equal(t, "u_1", body["external_user_id"])
		ok(w, map[string]any{"hasAccess": true})
	}))
	defer ts.Close()

	client := NewSubgateClient(Config{APIURL: ts.URL, APIKey: "k", ExternalAppID: "myapp"})
	_, err := client.ValidateUser(context.Background(), "u_1", "")
	require.NoError(t, err)
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleListPlans(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok(w, []map[string]any{
			{
				"id": "plan_starter", "name": "starter", "price": 1500,
				"currency": "USD", "billingCycle": "monthly", "trialDays": 14,
				"entitlements": map[string]any{"features": map[string]any{"api_access": true}},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleListPlans(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "starter")
	assert.Contains(t, text, "15.00 USD / monthly")
	assert.Contains(t, text, "Trial: 14 days")
	assert.Contains(t, text, "api_access")
}

func TestHandleGetTenant_RequiresIdentifier(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not reach the API")
	}))
	defer cleanup()

	result, err := h.HandleGetTenant(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGetTenant(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{
			"tenant": map[string]any{
				"id": "ten_1", "name": "Acme", "status": "active",
				"ownerEmail": "owner@acme.test",
			},
			"subscriptions": []map[string]any{
				{"id": "sub_1", "status": "trialing", "planId": "plan_starter", "periodEnd": "2025-02-01T00:00:00Z"},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleGetTenant(context.Background(),
		makeRequest(map[string]any{"owner_user_id": "u_1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "ten_1")
	assert.Contains(t, text, "trialing")
}

func TestHandleValidateUser_Granted(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{
			"hasAccess":    true,
			"tenant":       map[string]any{"id": "ten_1", "name": "Acme"},
			"subscription": map[string]any{"id": "sub_1", "status": "active"},
			"license":      map[string]any{"jti": "lic_abc", "expiresAt": "2025-02-01T00:00:00Z"},
		})
	}))
	defer cleanup()

	result, err := h.HandleValidateUser(context.Background(),
		makeRequest(map[string]any{"external_user_id": "u_1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "GRANTED")
	assert.Contains(t, text, "lic_abc")
}

func TestHandleValidateUser_Denied(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"hasAccess": false, "reason": "subscription_past_due"})
	}))
	defer cleanup()

	result, err := h.HandleValidateUser(context.Background(),
		makeRequest(map[string]any{"user_email": "owner@acme.test"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "DENIED")
	assert.Contains(t, text, "subscription_past_due")
}

func TestHandleCheckFeature(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lic_abc", r.URL.Query().Get("jti"))
		assert.Equal(t, "api_access", r.URL.Query().Get("feature"))
		ok(w, map[string]any{"valid": true, "enabled": true, "feature": "api_access"})
	}))
	defer cleanup()

	result, err := h.HandleCheckFeature(context.Background(),
		makeRequest(map[string]any{"jti": "lic_abc", "feature": "api_access"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "ENABLED")
}

func TestHandleCheckFeature_InvalidLicense(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"valid": false, "enabled": false, "feature": "api_access"})
	}))
	defer cleanup()

	result, err := h.HandleCheckFeature(context.Background(),
		makeRequest(map[string]any{"jti": "lic_expired", "feature": "api_access"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not valid")
}

func TestHandleRecordUsage(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ten_1", body["tenant_id"])
		assert.Equal(t, "api_calls", body["metric"])
		assert.Equal(t, float64(5), body["value"])
		w.WriteHeader(http.StatusCreated)
		ok(w, map[string]any{"id": "use_1"})
	}))
	defer cleanup()

	result, err := h.HandleRecordUsage(context.Background(),
		makeRequest(map[string]any{"tenant_id": "ten_1", "metric": "api_calls", "value": 5}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "use_1")
}

func TestHandleRecordUsage_MissingMetric(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not reach the API")
	}))
	defer cleanup()

	result, err := h.HandleRecordUsage(context.Background(),
		makeRequest(map[string]any{"tenant_id": "ten_1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
