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
	client := NewSentinelClient(Config{APIURL: ts.URL})
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

// --- Client tests ---

func TestClient_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "alert not found"})
	}))
	defer ts.Close()

	client := NewSentinelClient(Config{APIURL: ts.URL})
	_, err := client.GetAlerts(context.Background(), "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "alert not found")
}

func TestClient_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewSentinelClient(Config{APIURL: ts.URL})
	_, err := client.GetControls(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_GetAlerts_QueryParams(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"alerts":[]}`))
	}))
	defer ts.Close()

	client := NewSentinelClient(Config{APIURL: ts.URL})
	_, err := client.GetAlerts(context.Background(), "open", 5)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "status=open")
	assert.Contains(t, gotQuery, "limit=5")
}

// --- Handler tests ---

func TestHandleListScenarios(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scenarios", r.URL.Path)
		_, _ = w.Write([]byte(`{"scenarios":[
			{"id":"account_takeover","name":"Account Takeover","description":"Credential stuffing from a hostile network","phases":["recon","brute_force","drain"]},
			{"id":"velocity_burst","name":"Velocity Burst","description":"Rapid-fire transfers","phases":["burst"]}
		]}`))
	}))
	defer cleanup()

	result, err := h.HandleListScenarios(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "account_takeover")
	assert.Contains(t, text, "recon, brute_force, drain")
	assert.Contains(t, text, "velocity_burst")
}

func TestHandleRunScenario(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scenarios/account_takeover/run", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{
			"run":{"id":"run_abc","scenario_id":"account_takeover","status":"completed"},
			"output":["phase recon: probing logins","phase drain: transfer blocked"]
		}`))
	}))
	defer cleanup()

	result, err := h.HandleRunScenario(context.Background(), makeRequest(map[string]any{
		"scenario_id": "account_takeover",
	}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "run_abc")
	assert.Contains(t, text, `"completed"`)
	assert.Contains(t, text, "phase drain: transfer blocked")
}

func TestHandleRunScenario_MissingID(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made")
	}))
	defer cleanup()

	result, err := h.HandleRunScenario(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGetAlerts(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"alerts":[
			{"id":"alert_1","severity":"high","status":"open","title":"Flagged transfer","reasons":["amount exceeds $50,000"],"user_id":"usr_1"}
		]}`))
	}))
	defer cleanup()

	result, err := h.HandleGetAlerts(context.Background(), makeRequest(map[string]any{"status": "open"}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "[HIGH] alert_1")
	assert.Contains(t, text, "amount exceeds $50,000")
}

func TestHandleGetAlerts_Empty(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"alerts":[]}`))
	}))
	defer cleanup()

	result, err := h.HandleGetAlerts(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No alerts")
}

func TestHandleCorrelate_Hit(t *testing.T) {
	var gotBody map[string]string
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/intel/correlate", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"hit":true,"matches":[
			{"field":"ip","indicator":{"id":"ioc_1","kind":"ip","value":"185.220.101.5","source":"abuse-feed","confidence":92}}
		]}`))
	}))
	defer cleanup()

	result, err := h.HandleCorrelate(context.Background(), makeRequest(map[string]any{
		"ip": "185.220.101.5",
	}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "THREAT INTEL HIT")
	assert.Contains(t, text, "185.220.101.5")
	assert.Contains(t, text, "confidence 92")
	assert.Equal(t, "185.220.101.5", gotBody["ip"])
	_, hasDevice := gotBody["device"]
	assert.False(t, hasDevice, "empty observables should be omitted")
}

func TestHandleCorrelate_NoObservables(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made")
	}))
	defer cleanup()

	result, err := h.HandleCorrelate(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleToggleControl(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/controls/mfa/toggle", r.URL.Path)
		_, _ = w.Write([]byte(`{"category":"mfa","enabled":false}`))
	}))
	defer cleanup()

	result, err := h.HandleToggleControl(context.Background(), makeRequest(map[string]any{
		"control_id": "mfa",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "mfa is now disabled")
}

func TestHandleSimulateTransfer(t *testing.T) {
	var gotBody map[string]any
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transfers", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{
			"status":"blocked","risk_score":75,"flagged":true,"ml_prediction":0.81,
			"deviation_score":40,
			"risk_reasons":["unknown IP","transfer denied by transaction_limit"]
		}`))
	}))
	defer cleanup()

	result, err := h.HandleSimulateTransfer(context.Background(), makeRequest(map[string]any{
		"from_account": "ACC-1001",
		"to_account":   "ACC-1002",
		"amount":       "60000.00",
		"ip":           "185.220.101.5",
	}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Decision: blocked")
	assert.Contains(t, text, "75")
	assert.Contains(t, text, "unknown IP")

	assert.Equal(t, "ACC-1001", gotBody["from_account"])
	ctx, ok := gotBody["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "185.220.101.5", ctx["ip"])
	assert.Equal(t, "device-home-1", ctx["device"], "omitted device should default")
}

func TestHandleSimulateTransfer_MissingArgs(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made")
	}))
	defer cleanup()

	result, err := h.HandleSimulateTransfer(context.Background(), makeRequest(map[string]any{
		"from_account": "ACC-1001",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
