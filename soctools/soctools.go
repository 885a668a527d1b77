// Package soctools implements the SOC investigation tools: alert retrieval,
// threat intelligence reputation checks, and IP geolocation.
package soctools

import (
	"github.com/cockroachdb/errors"
	"github.com/therealnoof/mcp-server-lab/tools"
)

// RegisterAll creates every SOC tool and registers it on the given MCP
// server.
func RegisterAll(registrator tools.McpServerRegistrator) error {
	alerts, err := NewAlertsTool()
	if err != nil {
		return err
	}
	details, err := NewAlertDetailsTool()
	if err != nil {
		return err
	}
	reputation, err := NewReputationTool()
	if err != nil {
		return err
	}
	geolocation, err := NewGeolocationTool()
	if err != nil {
		return err
	}

	for _, tool := range []tools.IMCPTool{alerts, details, reputation, geolocation} {
		if err := tool.RegisterMCP(registrator); err != nil {
			return errors.WithMessagef(err, "failed to register tool %s", tool.Name())
		}
	}
	return nil
}
