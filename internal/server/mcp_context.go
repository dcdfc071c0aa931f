package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bebsworthy/logwatch/internal/sources"
)

// GuideURI is the resource URI of the usage guide
const GuideURI = "logwatch://guide"

// MCPSystemContext provides context information for LLMs using LogWatch
const MCPSystemContext = `
# LogWatch - Development Server Logs

LogWatch lets you read, filter, search and clear the output of local development
servers. A capture command records each server's terminal output to a log file;
LogWatch only reads those files and never starts servers itself.

## Quick Start
1. Use 'list_sources' to see which sources have a log file
2. Use 'get_logs' to view the most recent output
3. Use 'get_errors' to see only errors and warnings
4. If a log file is missing, use 'setup_capture' and ask the user to run the command

## Key Concepts
- **Source**: A named development server with one log file
- **Capture command**: The shell command that runs the server and records its output
- **Snapshot**: Every call reads the file once; nothing is streamed

## Common Patterns
- Debug a crash: get_errors, then search_logs for the failing module name
- Verify a fix: clear_logs, reproduce, then get_logs
- Find a request: search_logs with a path or status code

## Tips
- search_logs is case-insensitive and accepts regular expressions
- Invalid expressions are matched as plain text
- search_logs returns at most the 30 most recent matches
`

// GetMCPContext returns the guide, followed by the configured sources
func GetMCPContext(registry *sources.Registry) string {
	var b strings.Builder
	b.WriteString(MCPSystemContext)
	b.WriteString("\n## Sources\n")

	for _, d := range registry.Descriptors() {
		marker := ""
		if d.ID == registry.Default() {
			marker = " (default)"
		}
		fmt.Fprintf(&b, "- **%s**%s: %s, file %s\n", d.ID, marker, d.Description, d.File)
	}

	return b.String()
}

// registerResources registers the guide resource
func (mcpSrv *MCPServer) registerResources() {
	guide := mcp.NewResource(GuideURI, "LogWatch guide",
		mcp.WithResourceDescription("How to use the LogWatch tools"),
		mcp.WithMIMEType("text/markdown"),
	)

	mcpSrv.mcpServer.AddResource(guide, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GuideURI,
				MIMEType: "text/markdown",
				Text:     GetMCPContext(mcpSrv.registry),
			},
		}, nil
	})
}
