package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Sentinel MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListScenarios = mcp.NewTool("list_scenarios",
	mcp.WithDescription(
		"List the available attack scenarios on the Sentinel fraud engine. "+
			"Each scenario drives a scripted fraud pattern (account takeover, mule network, "+
			"velocity burst, blacklist probe) through the live detection pipeline."),
)

var ToolRunScenario = mcp.NewTool("run_attack_scenario",
	mcp.WithDescription(
		"Run an attack scenario against the Sentinel engine and return the phase-by-phase "+
			"narration. Use list_scenarios first to see what is available. "+
			"Only one scenario can run at a time."),
	mcp.WithString("scenario_id",
		mcp.Required(),
		mcp.Description("Scenario to run (e.g. 'account_takeover', 'velocity_burst')")),
)

var ToolGetAlerts = mcp.NewTool("get_alerts",
	mcp.WithDescription(
		"List fraud alerts raised by the engine, newest first. "+
			"Shows severity, status, and the risk reasons behind each alert."),
	mcp.WithString("status",
		mcp.Description("Filter by review status"),
		mcp.Enum("open", "investigating", "resolved", "false_positive")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of alerts to return (default 20)")),
)

var ToolUpdateAlert = mcp.NewTool("update_alert_status",
	mcp.WithDescription(
		"Move a fraud alert through its review lifecycle: open -> investigating -> "+
			"resolved or false_positive. Terminal states cannot be reopened."),
	mcp.WithString("alert_id",
		mcp.Required(),
		mcp.Description("The alert ID (e.g. 'alert_...')")),
	mcp.WithString("status",
		mcp.Required(),
		mcp.Description("New status"),
		mcp.Enum("investigating", "resolved", "false_positive")),
)

var ToolCorrelate = mcp.NewTool("correlate_threat_intel",
	mcp.WithDescription(
		"Check an IP address, device fingerprint, or account number against the "+
			"threat intelligence index. Returns any active indicators that match."),
	mcp.WithString("ip",
		mcp.Description("IP address to check")),
	mcp.WithString("device",
		mcp.Description("Device fingerprint to check")),
	mcp.WithString("account",
		mcp.Description("Account number to check")),
	mcp.WithString("email",
		mcp.Description("Email address to check")),
)

var ToolGetControls = mcp.NewTool("get_controls",
	mcp.WithDescription(
		"Show the engine's security controls (rate limiting, lockout, MFA, "+
			"transaction limits, IP blacklist, step-up auth) with their current "+
			"enabled state and configuration."),
)

var ToolToggleControl = mcp.NewTool("toggle_control",
	mcp.WithDescription(
		"Enable or disable one security control. Disabled controls stop gating "+
			"logins and transfers immediately."),
	mcp.WithString("control_id",
		mcp.Required(),
		mcp.Description("Control to flip"),
		mcp.Enum("rate_limiting", "lockout", "mfa", "transaction_limit", "ip_blacklist", "step_up_auth")),
)

var ToolSimulateTransfer = mcp.NewTool("simulate_transfer",
	mcp.WithDescription(
		"Submit a transfer through the full fraud decision pipeline: risk scoring, "+
			"behavioral analysis, and security gates. Returns the decision with risk "+
			"scores and reasons. Money moves only when the engine commits the transfer."),
	mcp.WithString("from_account",
		mcp.Required(),
		mcp.Description("Source account number (e.g. 'ACC-1001')")),
	mcp.WithString("to_account",
		mcp.Required(),
		mcp.Description("Destination account number")),
	mcp.WithString("amount",
		mcp.Required(),
		mcp.Description("Amount in dollars (e.g. '250.00')")),
	mcp.WithString("ip",
		mcp.Description("Originating IP address (defaults to a known-good home IP)")),
	mcp.WithString("device",
		mcp.Description("Device fingerprint")),
	mcp.WithString("geo",
		mcp.Description("Geo location string (e.g. 'New York, US')")),
)

var ToolDetectionStats = mcp.NewTool("get_detection_stats",
	mcp.WithDescription(
		"Get detection quality statistics: transfer counts by outcome, flag rates, "+
			"and the ML model's precision and recall against the rule engine."),
)
