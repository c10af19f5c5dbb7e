package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *SentinelClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *SentinelClient) *Handlers {
	return &Handlers{client: client}
}

// HandleListScenarios lists the attack scenario catalog.
func (h *Handlers) HandleListScenarios(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListScenarios(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list scenarios: %v", err)), nil
	}

	var resp struct {
		Scenarios []struct {
			ID          string   `json:"id"`
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Phases      []string `json:"phases"`
		} `json:"scenarios"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse scenarios: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Available attack scenarios (%d):\n\n", len(resp.Scenarios))
	for _, sc := range resp.Scenarios {
		fmt.Fprintf(&sb, "%s - %s\n", sc.ID, sc.Name)
		fmt.Fprintf(&sb, "  %s\n", sc.Description)
		if len(sc.Phases) > 0 {
			fmt.Fprintf(&sb, "  Phases: %s\n", strings.Join(sc.Phases, ", "))
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleRunScenario runs one scenario to completion and returns the feed.
func (h *Handlers) HandleRunScenario(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("scenario_id", "")
	if id == "" {
		return mcp.NewToolResultError("scenario_id is required"), nil
	}

	raw, err := h.client.RunScenario(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Scenario run failed: %v", err)), nil
	}

	var resp struct {
		Run struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"run"`
		Output []string `json:"output"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse run: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s finished with status %q\n", resp.Run.ID, resp.Run.Status)
	if resp.Run.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", resp.Run.Error)
	}
	sb.WriteString("\nFeed:\n")
	for _, line := range resp.Output {
		fmt.Fprintf(&sb, "  %s\n", line)
	}
	sb.WriteString("\nUse get_alerts to see what the engine flagged.")
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetAlerts lists fraud alerts.
func (h *Handlers) HandleGetAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.GetAlerts(ctx, status, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get alerts: %v", err)), nil
	}

	var resp struct {
		Alerts []struct {
			ID       string   `json:"id"`
			Severity string   `json:"severity"`
			Status   string   `json:"status"`
			Title    string   `json:"title"`
			Reasons  []string `json:"reasons"`
			UserID   string   `json:"user_id"`
		} `json:"alerts"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse alerts: %v", err)), nil
	}

	if len(resp.Alerts) == 0 {
		return mcp.NewToolResultText("No alerts match."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d alert(s):\n\n", len(resp.Alerts))
	for _, a := range resp.Alerts {
		fmt.Fprintf(&sb, "[%s] %s (%s) - %s\n", strings.ToUpper(a.Severity), a.ID, a.Status, a.Title)
		fmt.Fprintf(&sb, "  User: %s\n", a.UserID)
		for _, r := range a.Reasons {
			fmt.Fprintf(&sb, "  - %s\n", r)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleUpdateAlert moves an alert through its lifecycle.
func (h *Handlers) HandleUpdateAlert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("alert_id", "")
	status := req.GetString("status", "")
	if id == "" || status == "" {
		return mcp.NewToolResultError("alert_id and status are required"), nil
	}

	raw, err := h.client.UpdateAlertStatus(ctx, id, status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update alert: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Alert updated:\n%s", formatJSON(raw))), nil
}

// HandleCorrelate checks observables against the intel index.
func (h *Handlers) HandleCorrelate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ip := req.GetString("ip", "")
	device := req.GetString("device", "")
	account := req.GetString("account", "")
	email := req.GetString("email", "")
	if ip == "" && device == "" && account == "" && email == "" {
		return mcp.NewToolResultError("provide at least one of ip, device, account, email"), nil
	}

	raw, err := h.client.Correlate(ctx, ip, device, account, email)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Correlation failed: %v", err)), nil
	}

	var resp struct {
		Hit     bool `json:"hit"`
		Matches []struct {
			Field     string `json:"field"`
			Indicator struct {
				ID         string `json:"id"`
				Kind       string `json:"kind"`
				Value      string `json:"value"`
				Source     string `json:"source"`
				Confidence int    `json:"confidence"`
			} `json:"indicator"`
		} `json:"matches"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse matches: %v", err)), nil
	}

	if !resp.Hit {
		return mcp.NewToolResultText("No active indicators match. The observables are clean as far as the index knows."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "THREAT INTEL HIT: %d match(es)\n\n", len(resp.Matches))
	for _, m := range resp.Matches {
		ind := m.Indicator
		fmt.Fprintf(&sb, "%s matched %s indicator %s\n", m.Field, ind.Kind, ind.Value)
		fmt.Fprintf(&sb, "  Source: %s, confidence %d/100 (id %s)\n", ind.Source, ind.Confidence, ind.ID)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetControls shows the control set.
func (h *Handlers) HandleGetControls(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetControls(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get controls: %v", err)), nil
	}

	var resp struct {
		Controls []struct {
			Category string `json:"category"`
			Name     string `json:"name"`
			Enabled  bool   `json:"enabled"`
		} `json:"controls"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse controls: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("Security controls:\n\n")
	for _, ctl := range resp.Controls {
		state := "disabled"
		if ctl.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(&sb, "%-18s %-28s %s\n", ctl.Category, ctl.Name, state)
	}
	sb.WriteString("\nFull configuration:\n")
	sb.WriteString(formatJSON(raw))
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleToggleControl flips one control.
func (h *Handlers) HandleToggleControl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("control_id", "")
	if id == "" {
		return mcp.NewToolResultError("control_id is required"), nil
	}

	raw, err := h.client.ToggleControl(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to toggle control: %v", err)), nil
	}

	var resp struct {
		Category string `json:"category"`
		Enabled  bool   `json:"enabled"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse response: %v", err)), nil
	}

	state := "disabled"
	if resp.Enabled {
		state = "enabled"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Control %s is now %s.", resp.Category, state)), nil
}

// HandleSimulateTransfer pushes a transfer through the pipeline.
func (h *Handlers) HandleSimulateTransfer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := req.GetString("from_account", "")
	to := req.GetString("to_account", "")
	amount := req.GetString("amount", "")
	if from == "" || to == "" || amount == "" {
		return mcp.NewToolResultError("from_account, to_account and amount are required"), nil
	}
	ip := req.GetString("ip", "192.168.1.10")
	device := req.GetString("device", "device-home-1")
	geo := req.GetString("geo", "New York, US")

	raw, err := h.client.Transfer(ctx, from, to, amount, ip, device, geo)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Transfer failed: %v", err)), nil
	}

	var out struct {
		Status         string   `json:"status"`
		TransactionID  string   `json:"transaction_id"`
		PendingID      string   `json:"pending_id"`
		RiskScore      int      `json:"risk_score"`
		RiskReasons    []string `json:"risk_reasons"`
		Flagged        bool     `json:"flagged"`
		MLPrediction   float64  `json:"ml_prediction"`
		DeviationScore int      `json:"deviation_score"`
		Deviations     []string `json:"deviations"`
		DeniedBy       string   `json:"denied_by"`
		DenialReason   string   `json:"denial_reason"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse outcome: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Decision: %s\n", out.Status)
	fmt.Fprintf(&sb, "Risk score: %d (flagged: %v), model score: %.3f, deviation score: %d\n",
		out.RiskScore, out.Flagged, out.MLPrediction, out.DeviationScore)
	if out.TransactionID != "" {
		fmt.Fprintf(&sb, "Transaction: %s\n", out.TransactionID)
	}
	if out.PendingID != "" {
		fmt.Fprintf(&sb, "Pending step-up verification: %s (confirm within 5 minutes)\n", out.PendingID)
	}
	if out.DeniedBy != "" {
		fmt.Fprintf(&sb, "Denied by control %s: %s\n", out.DeniedBy, out.DenialReason)
	}
	for _, r := range out.RiskReasons {
		fmt.Fprintf(&sb, "  risk: %s\n", r)
	}
	for _, d := range out.Deviations {
		fmt.Fprintf(&sb, "  deviation: %s\n", d)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleDetectionStats returns engine quality metrics.
func (h *Handlers) HandleDetectionStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.DetectionStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get stats: %v", err)), nil
	}
	return mcp.NewToolResultText("Detection statistics:\n" + formatJSON(raw)), nil
}

func formatJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
