package soctools

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/therealnoof/mcp-server-lab/chatmodel"
	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/pkg/llmutils"
	"github.com/therealnoof/mcp-server-lab/pkg/schema"
	"github.com/therealnoof/mcp-server-lab/tools"
)

const ReputationToolName = "check_ip_reputation"

type threatInfo struct {
	Threat     string
	Confidence int
}

// knownMaliciousIPs stands in for threat intelligence feeds such as
// VirusTotal or AbuseIPDB.
var knownMaliciousIPs = map[string]threatInfo{
	"185.220.101.45": {Threat: "Tor Exit Node", Confidence: 90},
	"192.42.116.16":  {Threat: "Port Scanning", Confidence: 75},
	"45.33.32.156":   {Threat: "Known C2 Server", Confidence: 88},
	"198.199.10.1":   {Threat: "Brute Force Source", Confidence: 72},
	"89.248.167.131": {Threat: "Malware Distribution", Confidence: 95},
}

// ReputationRequest represents the tool input.
type ReputationRequest struct {
	IPAddress string `json:"ip_address" yaml:"ip_address" jsonschema:"title=ip_address,description=The IPv4 address to check (e.g. '185.220.101.45'),required"`
}

// ReputationResult represents the tool output.
type ReputationResult struct {
	IP              string `json:"ip"`
	IsMalicious     bool   `json:"is_malicious"`
	ThreatType      string `json:"threat_type"`
	ConfidenceScore int    `json:"confidence_score"`
	Recommendation  string `json:"recommendation"`
	CheckedAt       string `json:"checked_at"`
}

func (r *ReputationResult) GetContent() string {
	return llmutils.ToJSON(r)
}

// ReputationTool checks an IP address against the threat intel list.
type ReputationTool struct {
	name        string
	description string
	funcParams  any
	now         func() time.Time
}

var _ tools.Tool[ReputationRequest, ReputationResult] = (*ReputationTool)(nil)

// NewReputationTool creates the reputation lookup tool.
func NewReputationTool() (*ReputationTool, error) {
	sc, err := schema.New(reflect.TypeOf(ReputationRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &ReputationTool{
		name: ReputationToolName,
		description: "Check if an IP address is known to be malicious based on threat intelligence feeds. " +
			"This tool should be called for ANY external IP addresses found in alerts. " +
			"Returns whether the IP is known-bad, the threat category, and a confidence score.",
		funcParams: sc.Parameters,
		now:        time.Now,
	}, nil
}

func (t *ReputationTool) Name() string {
	return t.name
}

func (t *ReputationTool) Description() string {
	return t.description
}

func (t *ReputationTool) Parameters() any {
	return t.funcParams
}

// Run reports the threat status of the IP. Unknown IPs are treated as clean.
func (t *ReputationTool) Run(_ context.Context, req *ReputationRequest) (*ReputationResult, error) {
	checkedAt := t.now().UTC().Format(time.RFC3339)

	if info, ok := knownMaliciousIPs[req.IPAddress]; ok {
		return &ReputationResult{
			IP:              req.IPAddress,
			IsMalicious:     true,
			ThreatType:      info.Threat,
			ConfidenceScore: info.Confidence,
			Recommendation:  "BLOCK - High confidence threat indicator",
			CheckedAt:       checkedAt,
		}, nil
	}

	return &ReputationResult{
		IP:              req.IPAddress,
		IsMalicious:     false,
		ThreatType:      "None detected",
		ConfidenceScore: 0,
		Recommendation:  "MONITOR - No known threat indicators",
		CheckedAt:       checkedAt,
	}, nil
}

func (t *ReputationTool) Call(ctx context.Context, input string) (string, error) {
	var req ReputationRequest
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
func (t *ReputationTool) RegisterMCP(registrator tools.McpServerRegistrator) error {
	return registrator.RegisterTool(t.name, t.description, func(args ReputationRequest) (*mcp.ToolResponse, error) {
		out, err := t.Run(context.Background(), &args)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResponseText(llmutils.ToJSONIndent(out)), nil
	})
}
