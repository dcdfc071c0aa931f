// Package server provides the MCP (Model Context Protocol) interface for LogWatch.
//
// The MCP server exposes the query engine to language models through the
// mcp-go library, over stdio or SSE. Every tool answers with exactly one text
// block; failures are reported as tool results flagged isError and never as
// protocol errors.
//
// Available MCP Tools:
// - get_logs: Last lines of a source's log file
// - get_errors: Last lines mentioning error, warn, failed or exception
// - search_logs: Case-insensitive search across the whole file
// - clear_logs: Truncate a source's log file in place
// - setup_capture: Shell command that produces a source's log file
// - list_sources: Every source with its log file status
//
// Example usage:
//
//	mcpServer := server.NewMCPServer(dispatcher, logger, monitor, server.OptionsFromConfig(cfg, version))
//	if err := mcpServer.Serve(ctx); err != nil {
//		log.Fatal(err)
//	}
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bebsworthy/logwatch/internal/config"
	"github.com/bebsworthy/logwatch/internal/errors"
	"github.com/bebsworthy/logwatch/internal/logging"
	"github.com/bebsworthy/logwatch/internal/metrics"
	"github.com/bebsworthy/logwatch/internal/protocol"
	"github.com/bebsworthy/logwatch/internal/query"
	"github.com/bebsworthy/logwatch/internal/sources"
)

// shutdownTimeout bounds SSE shutdown once the serve context ends
const shutdownTimeout = 5 * time.Second

// Options configures the MCP server
type Options struct {
	Name      string
	Version   string
	Transport string
	Address   string
	// Timeout bounds each tool call; zero means no deadline.
	Timeout time.Duration
}

// OptionsFromConfig derives server options from the configuration
func OptionsFromConfig(cfg *config.Config, version string) Options {
	return Options{
		Name:      cfg.Server.Name,
		Version:   version,
		Transport: cfg.Server.Transport,
		Address:   cfg.Server.Address,
		Timeout:   cfg.Query.Timeout,
	}
}

// MCPServer provides the MCP interface for LogWatch using mcp-go
type MCPServer struct {
	dispatcher *query.Dispatcher
	registry   *sources.Registry
	logger     *logging.Logger
	monitor    *metrics.Monitor
	opts       Options
	mcpServer  *server.MCPServer
}

// toolFunc runs one decoded and validated tool request
type toolFunc func(ctx context.Context, req interface{}) (query.Result, error)

// NewMCPServer creates a new MCP server with all tools and the guide resource registered
func NewMCPServer(dispatcher *query.Dispatcher, logger *logging.Logger, monitor *metrics.Monitor, opts Options) *MCPServer {
	if opts.Name == "" {
		opts.Name = "log-watcher"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if monitor == nil {
		monitor = metrics.NewMonitor()
	}

	mcpServer := server.NewMCPServer(
		opts.Name,
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, false),
	)

	mcpSrv := &MCPServer{
		dispatcher: dispatcher,
		registry:   dispatcher.Registry(),
		logger:     logger,
		monitor:    monitor,
		opts:       opts,
		mcpServer:  mcpServer,
	}

	mcpSrv.registerTools()
	mcpSrv.registerResources()

	return mcpSrv
}

// registerTools registers all MCP tools with the mcp-go server
func (mcpSrv *MCPServer) registerTools() {
	handlers := map[string]toolFunc{
		protocol.ToolGetLogs:      mcpSrv.getLogs,
		protocol.ToolGetErrors:    mcpSrv.getErrors,
		protocol.ToolSearchLogs:   mcpSrv.searchLogs,
		protocol.ToolClearLogs:    mcpSrv.clearLogs,
		protocol.ToolSetupCapture: mcpSrv.setupCapture,
		protocol.ToolListSources:  mcpSrv.listSources,
	}

	specs := protocol.GetMCPTools(mcpSrv.registry.Names(), mcpSrv.registry.Default().String())
	for _, spec := range specs {
		mcpSrv.mcpServer.AddTool(newTool(spec), mcpSrv.handle(spec.Name, handlers[spec.Name]))
	}
}

// newTool converts a tool spec into an mcp-go tool definition
func newTool(spec protocol.ToolSpec) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(spec.Description)}

	for _, p := range spec.Params {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		if len(p.Enum) > 0 {
			propOpts = append(propOpts, mcp.Enum(p.Enum...))
		}

		switch p.Type {
		case protocol.ParamNumber:
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}

	return mcp.NewTool(spec.Name, opts...)
}

// handle wraps a tool function with request IDs, argument decoding, the
// optional call deadline, metrics and error shaping.
func (mcpSrv *MCPServer) handle(tool string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logging.WithRequestID(ctx, logging.NewRequestID())
		if mcpSrv.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, mcpSrv.opts.Timeout)
			defer cancel()
		}

		args := request.GetArguments()
		mcpSrv.logger.InfoContext(ctx, "Tool called",
			slog.String("tool", tool),
			slog.Any("arguments", args),
		)

		var result *mcp.CallToolResult
		start := time.Now()

		_ = mcpSrv.monitor.TrackOperation(ctx, tool, func() error {
			req, err := protocol.ParseMCPRequest(tool, args)
			if err == nil {
				err = protocol.ValidateMCPRequest(tool, req)
			}
			if err != nil {
				result = mcpSrv.errorResult(ctx, tool, err)
				return err
			}

			res, err := fn(ctx, req)
			if err != nil {
				result = mcpSrv.errorResult(ctx, tool, err)
				return err
			}

			mcpSrv.monitor.RecordOutcome(tool, string(res.Kind))
			if res.IsError() {
				result = mcpSrv.failedResult(ctx, tool, res)
				return res.Err
			}

			result = mcp.NewToolResultText(res.Text)
			return nil
		})

		mcpSrv.logger.LogTiming(ctx, tool, start)
		return result, nil
	}
}

// errorResult renders a validation or internal error as an isError result
func (mcpSrv *MCPServer) errorResult(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	lwErr := errors.ClassifyError(err)
	mcpSrv.monitor.TrackError(ctx, string(lwErr.Type), lwErr.Code, "server", lwErr.Message)
	mcpSrv.logger.LogAttrs(ctx, slog.LevelWarn, "Tool rejected",
		append(lwErr.LogAttrs(), slog.String("tool", tool))...,
	)

	return mcp.NewToolResultError(lwErr.Message)
}

// failedResult renders a query whose execution failed
func (mcpSrv *MCPServer) failedResult(ctx context.Context, tool string, res query.Result) *mcp.CallToolResult {
	if res.Err != nil {
		lwErr := errors.ClassifyError(res.Err)
		mcpSrv.monitor.TrackError(ctx, string(lwErr.Type), lwErr.Code, "query", res.Text)
		mcpSrv.logger.LogError(ctx, "Tool failed", lwErr,
			slog.String("tool", tool),
			slog.String("source", res.Source.String()),
		)
	}
	return mcp.NewToolResultError(res.Text)
}

// Tool Handlers

func (mcpSrv *MCPServer) getLogs(ctx context.Context, req interface{}) (query.Result, error) {
	r := req.(*protocol.GetLogsRequest)
	return mcpSrv.dispatcher.Tail(ctx, r.Source, r.Lines)
}

func (mcpSrv *MCPServer) getErrors(ctx context.Context, req interface{}) (query.Result, error) {
	r := req.(*protocol.GetErrorsRequest)
	return mcpSrv.dispatcher.Errors(ctx, r.Source, r.Lines)
}

func (mcpSrv *MCPServer) searchLogs(ctx context.Context, req interface{}) (query.Result, error) {
	r := req.(*protocol.SearchLogsRequest)
	return mcpSrv.dispatcher.Search(ctx, r.Source, r.Pattern)
}

func (mcpSrv *MCPServer) clearLogs(ctx context.Context, req interface{}) (query.Result, error) {
	r := req.(*protocol.ClearLogsRequest)
	return mcpSrv.dispatcher.Clear(ctx, r.Source)
}

func (mcpSrv *MCPServer) setupCapture(ctx context.Context, req interface{}) (query.Result, error) {
	r := req.(*protocol.SetupCaptureRequest)

	text, err := mcpSrv.registry.RenderCaptureInstructions(r.Source)
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{Source: sources.ID(r.Source), Kind: query.KindOK, Text: text}, nil
}

func (mcpSrv *MCPServer) listSources(ctx context.Context, req interface{}) (query.Result, error) {
	return query.Result{Kind: query.KindOK, Text: mcpSrv.dispatcher.ListSources(ctx)}, nil
}

// Serve runs the configured transport until ctx is cancelled or the client
// goes away.
func (mcpSrv *MCPServer) Serve(ctx context.Context) error {
	switch mcpSrv.opts.Transport {
	case config.TransportSSE:
		return mcpSrv.ServeSSE(ctx, mcpSrv.opts.Address)
	default:
		return mcpSrv.ServeStdio(ctx, os.Stdin, os.Stdout)
	}
}

// ServeStdio serves MCP over the given reader and writer, normally the
// process stdin and stdout.
func (mcpSrv *MCPServer) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(mcpSrv.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(mcpSrv.logger.Handler(), slog.LevelError))

	mcpSrv.logger.InfoContext(ctx, "MCP server listening", slog.String("transport", config.TransportStdio))

	err := stdio.Listen(ctx, in, out)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

// ServeSSE serves MCP over HTTP server-sent events on addr.
func (mcpSrv *MCPServer) ServeSSE(ctx context.Context, addr string) error {
	sse := server.NewSSEServer(mcpSrv.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()

	mcpSrv.logger.InfoContext(ctx, "MCP server listening",
		slog.String("transport", config.TransportSSE),
		slog.String("address", addr),
	)

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sse transport: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("sse shutdown: %w", err)
		}
		return nil
	}
}

// HandleMessage processes one raw JSON-RPC message, bypassing the transport
func (mcpSrv *MCPServer) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return mcpSrv.mcpServer.HandleMessage(ctx, message)
}

// Monitor returns the metrics monitor used by the tool handlers
func (mcpSrv *MCPServer) Monitor() *metrics.Monitor {
	return mcpSrv.monitor
}
