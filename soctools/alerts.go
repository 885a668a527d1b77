package soctools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/therealnoof/mcp-server-lab/chatmodel"
	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/pkg/llmutils"
	"github.com/therealnoof/mcp-server-lab/pkg/schema"
	"github.com/therealnoof/mcp-server-lab/tools"
)

const (
	AlertsToolName       = "get_recent_alerts"
	AlertDetailsToolName = "get_alert_details"

	// MaxAlertsLimit caps how many alerts one call may return.
	MaxAlertsLimit = 5
)

// Alert is one security event from the alert log.
type Alert struct {
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	SourceIP      string `json:"source_ip"`
	DestinationIP string `json:"destination_ip"`
	EventType     string `json:"event_type"`
	Severity      string `json:"severity"`
	Attempts      int    `json:"attempts"`
}

// simulatedAlerts stands in for a SIEM feed.
var simulatedAlerts = []Alert{
	{
		ID:            "ALT-001",
		Timestamp:     "2024-01-15T10:23:00Z",
		SourceIP:      "185.220.101.45",
		DestinationIP: "10.0.1.22",
		EventType:     "SSH Brute Force",
		Severity:      "HIGH",
		Attempts:      847,
	},
	{
		ID:            "ALT-002",
		Timestamp:     "2024-01-15T10:25:00Z",
		SourceIP:      "192.168.1.105",
		DestinationIP: "10.0.1.5",
		EventType:     "Port Scan",
		Severity:      "MEDIUM",
		Attempts:      12,
	},
	{
		ID:            "ALT-003",
		Timestamp:     "2024-01-15T10:27:00Z",
		SourceIP:      "45.33.32.156",
		DestinationIP: "10.0.1.44",
		EventType:     "Suspicious Outbound Connection",
		Severity:      "HIGH",
		Attempts:      3,
	},
	{
		ID:            "ALT-004",
		Timestamp:     "2024-01-15T10:30:00Z",
		SourceIP:      "10.0.0.52",
		DestinationIP: "8.8.8.8",
		EventType:     "Unusual DNS Volume",
		Severity:      "MEDIUM",
		Attempts:      1203,
	},
	{
		ID:            "ALT-005",
		Timestamp:     "2024-01-15T10:31:00Z",
		SourceIP:      "89.248.167.131",
		DestinationIP: "10.0.1.10",
		EventType:     "Possible Data Exfiltration",
		Severity:      "CRITICAL",
		Attempts:      1,
	},
}

// AlertsRequest represents the tool input.
type AlertsRequest struct {
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty" jsonschema:"title=limit,description=How many recent alerts to return (default: 5; max: 10)."`
}

// AlertsResult represents the tool output.
type AlertsResult struct {
	AlertCount int     `json:"alert_count"`
	Alerts     []Alert `json:"alerts"`
}

func (r *AlertsResult) GetContent() string {
	return llmutils.ToJSON(r)
}

// AlertsTool returns recent security alerts from the log store.
type AlertsTool struct {
	name        string
	description string
	funcParams  any
}

var _ tools.Tool[AlertsRequest, AlertsResult] = (*AlertsTool)(nil)

// NewAlertsTool creates the alert listing tool.
func NewAlertsTool() (*AlertsTool, error) {
	sc, err := schema.New(reflect.TypeOf(AlertsRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &AlertsTool{
		name: AlertsToolName,
		description: "Retrieve recent security alerts from the SOC log store. " +
			"Use this tool first to see what security events need investigation. " +
			"Returns a list of alerts including source IPs, event types, and severity.",
		funcParams: sc.Parameters,
	}, nil
}

func (t *AlertsTool) Name() string {
	return t.name
}

func (t *AlertsTool) Description() string {
	return t.description
}

func (t *AlertsTool) Parameters() any {
	return t.funcParams
}

// Run returns up to 10 recent alerts, newest first in log order.
func (t *AlertsTool) Run(_ context.Context, req *AlertsRequest) (*AlertsResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = MaxAlertsLimit
	}
	// cap the limit so we don't return too much data
	if limit > 2*MaxAlertsLimit {
		limit = 2 * MaxAlertsLimit
	}
	if limit > len(simulatedAlerts) {
		limit = len(simulatedAlerts)
	}

	alerts := simulatedAlerts[:limit]
	return &AlertsResult{
		AlertCount: len(alerts),
		Alerts:     alerts,
	}, nil
}

func (t *AlertsTool) Call(ctx context.Context, input string) (string, error) {
	var req AlertsRequest
	if input != "" {
		if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
			return "", errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
		}
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return llmutils.ToJSONIndent(out), nil
}

// RegisterMCP registers the tool handler with an MCP server.
func (t *AlertsTool) RegisterMCP(registrator tools.McpServerRegistrator) error {
	return registrator.RegisterTool(t.name, t.description, func(args AlertsRequest) (*mcp.ToolResponse, error) {
		out, err := t.Run(context.Background(), &args)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResponseText(llmutils.ToJSONIndent(out)), nil
	})
}

// AlertDetailsRequest represents the tool input.
type AlertDetailsRequest struct {
	AlertID string `json:"alert_id" yaml:"alert_id" jsonschema:"title=alert_id,description=The alert identifier (e.g. 'ALT-001'),required"`
}

// AlertDetailsTool looks up one alert by ID.
type AlertDetailsTool struct {
	name        string
	description string
	funcParams  any
}

var _ tools.Tool[AlertDetailsRequest, Alert] = (*AlertDetailsTool)(nil)

// NewAlertDetailsTool creates the alert lookup tool.
func NewAlertDetailsTool() (*AlertDetailsTool, error) {
	sc, err := schema.New(reflect.TypeOf(AlertDetailsRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &AlertDetailsTool{
		name: AlertDetailsToolName,
		description: "Get detailed information about a specific alert by its ID. " +
			"Use this when you need more context about a particular security event.",
		funcParams: sc.Parameters,
	}, nil
}

func (t *AlertDetailsTool) Name() string {
	return t.name
}

func (t *AlertDetailsTool) Description() string {
	return t.description
}

func (t *AlertDetailsTool) Parameters() any {
	return t.funcParams
}

// Run finds the alert with the given ID.
func (t *AlertDetailsTool) Run(_ context.Context, req *AlertDetailsRequest) (*Alert, error) {
	for _, alert := range simulatedAlerts {
		if alert.ID == req.AlertID {
			found := alert
			return &found, nil
		}
	}
	return nil, errors.Newf("Alert %s not found", req.AlertID)
}

func (t *AlertDetailsTool) Call(ctx context.Context, input string) (string, error) {
	var req AlertDetailsRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return llmutils.ToJSONIndent(out), nil
}

// RegisterMCP registers the tool handler with an MCP server.
func (t *AlertDetailsTool) RegisterMCP(registrator tools.McpServerRegistrator) error {
	return registrator.RegisterTool(t.name, t.description, func(args AlertDetailsRequest) (*mcp.ToolResponse, error) {
		out, err := t.Run(context.Background(), &args)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResponseText(llmutils.ToJSONIndent(out)), nil
	})
}
