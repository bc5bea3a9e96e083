// Package mcpserver exposes the unit queries as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"unitlens/pkg/executor/runner"
	"unitlens/pkg/systemd"
)

// Inspector runs the service-manager queries.
type Inspector interface {
	UnitStatus(ctx context.Context, unit string) (string, error)
	SystemSummary(ctx context.Context) (string, error)
	UnitLogs(ctx context.Context, unit, since string) (string, error)
}

const instructions = `Read-only access to the host's service manager.
Use system_summary to list units, unit_status for one unit, and unit_logs for its journal.
Failed commands return the tool's own output with IsError set.`

type handler struct {
	inspector Inspector
	limits    systemd.Limits
	log       *zap.Logger
}

type summaryParams struct{}

type statusParams struct {
	Unit string `json:"unit" jsonschema:"unit name, e.g. sshd.service"`
}

type logsParams struct {
	Unit  string `json:"unit" jsonschema:"unit name, e.g. sshd.service"`
	Since string `json:"since,omitempty" jsonschema:"optional journalctl --since expression, e.g. today or -1h"`
}

// NewServer creates an MCP server with the three unit tools registered.
func NewServer(inspector Inspector, version string, log *zap.Logger) *mcp.Server {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{inspector: inspector, limits: systemd.DefaultLimits(), log: log}

	s := mcp.NewServer(&mcp.Implementation{Name: "unitlens", Version: version}, &mcp.ServerOptions{
		Instructions: instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "system_summary",
		Description: "List all units known to the service manager (systemctl --no-pager).",
	}, h.summaryHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "unit_status",
		Description: "Show the status of one unit (systemctl status <unit>).",
	}, h.statusHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "unit_logs",
		Description: "Show the journal of one unit, optionally bounded by since (journalctl --no-pager --unit <unit> [--since <since>]).",
	}, h.logsHandler)

	return s
}

func (h *handler) summaryHandler(ctx context.Context, _ *mcp.CallToolRequest, _ summaryParams) (*mcp.CallToolResult, any, error) {
	out, err := h.inspector.SystemSummary(ctx)
	return h.result(out, err)
}

func (h *handler) statusHandler(ctx context.Context, _ *mcp.CallToolRequest, params statusParams) (*mcp.CallToolResult, any, error) {
	if err := h.limits.ValidateUnit(params.Unit); err != nil {
		return errorResult(err.Error())
	}
	out, err := h.inspector.UnitStatus(ctx, params.Unit)
	return h.result(out, err)
}

func (h *handler) logsHandler(ctx context.Context, _ *mcp.CallToolRequest, params logsParams) (*mcp.CallToolResult, any, error) {
	if err := h.limits.ValidateUnit(params.Unit); err != nil {
		return errorResult(err.Error())
	}
	if err := h.limits.ValidateSince(params.Since); err != nil {
		return errorResult(err.Error())
	}
	out, err := h.inspector.UnitLogs(ctx, params.Unit, params.Since)
	return h.result(out, err)
}

// result relays command output. A failed command is still an answer, so its
// output goes back to the model; IO failures are logged and summarised.
func (h *handler) result(out string, err error) (*mcp.CallToolResult, any, error) {
	if err == nil {
		return textResult(out)
	}

	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) {
		return errorResult(fmt.Sprintf("%s\n[exit status %s]", cmdErr.Output, cmdErr.Status()))
	}

	h.log.Error("command could not be run", zap.Stringer("kind", runner.KindOf(err)), zap.Error(err))
	return errorResult("command could not be run: internal error")
}

func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
