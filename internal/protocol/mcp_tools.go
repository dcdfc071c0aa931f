// Package protocol defines the MCP tool surface of LogWatch: tool names,
// parameter schemas, typed requests and the decoding of raw tool arguments.
//
// Arguments arrive as decoded JSON (map[string]any), so numbers are float64
// and any field may carry an unexpected type. ParseMCPRequest turns them into
// typed requests and ValidateMCPRequest enforces the per-tool rules; both
// report problems as INVALID_ARGUMENT errors.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bebsworthy/logwatch/internal/errors"
)

// Tool names
const (
	ToolGetLogs      = "get_logs"
	ToolGetErrors    = "get_errors"
	ToolSearchLogs   = "search_logs"
	ToolClearLogs    = "clear_logs"
	ToolSetupCapture = "setup_capture"
	ToolListSources  = "list_sources"
)

// ParamType is the JSON schema type of a tool parameter
type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
)

// ParamSpec describes one tool parameter
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
}

// ToolSpec describes a tool available through the MCP interface
type ToolSpec struct {
	Name        string
	Description string
	Params      []ParamSpec
}

// GetMCPTools returns every tool, with source parameters restricted to the
// given identifiers.
func GetMCPTools(sourceIDs []string, defaultSource string) []ToolSpec {
	source := ParamSpec{
		Name:        "source",
		Type:        ParamString,
		Description: fmt.Sprintf("Log source: %s (default: %q)", quotedList(sourceIDs), defaultSource),
		Enum:        sourceIDs,
	}

	return []ToolSpec{
		{
			Name:        ToolGetLogs,
			Description: "Get recent logs from a development server",
			Params: []ParamSpec{
				{Name: "lines", Type: ParamNumber, Description: "Number of lines (default 100)"},
				source,
			},
		},
		{
			Name:        ToolGetErrors,
			Description: "Get only errors and warnings from logs",
			Params: []ParamSpec{
				{Name: "lines", Type: ParamNumber, Description: "Max lines (default 50)"},
				source,
			},
		},
		{
			Name:        ToolSearchLogs,
			Description: "Search logs for a pattern (case-insensitive, regular expressions allowed)",
			Params: []ParamSpec{
				{Name: "pattern", Type: ParamString, Description: "Text to search for", Required: true},
				source,
			},
		},
		{
			Name:        ToolClearLogs,
			Description: "Clear the log file for a specific source",
			Params:      []ParamSpec{source},
		},
		{
			Name:        ToolSetupCapture,
			Description: "Get the shell command to capture logs for a specific project type",
			Params: []ParamSpec{
				{
					Name:        "source",
					Type:        ParamString,
					Description: fmt.Sprintf("Project type: %s", quotedList(sourceIDs)),
					Required:    true,
					Enum:        sourceIDs,
				},
			},
		},
		{
			Name:        ToolListSources,
			Description: "List all available log sources and their status",
		},
	}
}

// quotedList renders ids as `"a", "b", or "c"`.
func quotedList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}

	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	case 2:
		return quoted[0] + " or " + quoted[1]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
	}
}

// MCP Request Structures

// GetLogsRequest represents a request to get logs
type GetLogsRequest struct {
	Lines  *int   `json:"lines,omitempty"`
	Source string `json:"source,omitempty"`
}

// GetErrorsRequest represents a request for error lines
type GetErrorsRequest struct {
	Lines  *int   `json:"lines,omitempty"`
	Source string `json:"source,omitempty"`
}

// SearchLogsRequest represents a pattern search
type SearchLogsRequest struct {
	Pattern string `json:"pattern" validate:"required"`
	Source  string `json:"source,omitempty"`
}

// ClearLogsRequest represents a request to truncate a log file
type ClearLogsRequest struct {
	Source string `json:"source,omitempty"`
}

// SetupCaptureRequest asks for capture instructions
type SetupCaptureRequest struct {
	Source string `json:"source" validate:"required"`
}

// ListSourcesRequest represents a request to list sources
type ListSourcesRequest struct{}

// ParseMCPRequest decodes raw tool arguments into the request for toolName
func ParseMCPRequest(toolName string, args map[string]interface{}) (interface{}, error) {
	switch toolName {
	case ToolGetLogs:
		var req GetLogsRequest
		var err error
		if req.Lines, err = optionalInt(args, "lines"); err != nil {
			return nil, err
		}
		if req.Source, err = optionalString(args, "source"); err != nil {
			return nil, err
		}
		return &req, nil

	case ToolGetErrors:
		var req GetErrorsRequest
		var err error
		if req.Lines, err = optionalInt(args, "lines"); err != nil {
			return nil, err
		}
		if req.Source, err = optionalString(args, "source"); err != nil {
			return nil, err
		}
		return &req, nil

	case ToolSearchLogs:
		var req SearchLogsRequest
		var err error
		if req.Pattern, err = optionalString(args, "pattern"); err != nil {
			return nil, err
		}
		if req.Source, err = optionalString(args, "source"); err != nil {
			return nil, err
		}
		return &req, nil

	case ToolClearLogs:
		var req ClearLogsRequest
		var err error
		if req.Source, err = optionalString(args, "source"); err != nil {
			return nil, err
		}
		return &req, nil

	case ToolSetupCapture:
		var req SetupCaptureRequest
		var err error
		if req.Source, err = optionalString(args, "source"); err != nil {
			return nil, err
		}
		return &req, nil

	case ToolListSources:
		return &ListSourcesRequest{}, nil

	default:
		return nil, errors.InvalidArgument("unknown tool: %s", toolName)
	}
}

// ValidateMCPRequest performs validation on MCP requests
func ValidateMCPRequest(toolName string, req interface{}) error {
	switch toolName {
	case ToolGetLogs:
		if r, ok := req.(*GetLogsRequest); ok {
			return validateLines(r.Lines)
		}

	case ToolGetErrors:
		if r, ok := req.(*GetErrorsRequest); ok {
			return validateLines(r.Lines)
		}

	case ToolSearchLogs:
		if r, ok := req.(*SearchLogsRequest); ok && r.Pattern == "" {
			return errors.InvalidArgument("pattern is required and cannot be empty")
		}

	case ToolSetupCapture:
		if r, ok := req.(*SetupCaptureRequest); ok && r.Source == "" {
			return errors.InvalidArgument("source is required")
		}
	}

	return nil
}

func validateLines(lines *int) error {
	if lines != nil && *lines < 1 {
		return errors.InvalidArgument("lines must be a positive integer, got %d", *lines)
	}
	return nil
}

// optionalString reads a string argument. Missing and null both mean unset.
func optionalString(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}

	s, ok := raw.(string)
	if !ok {
		return "", errors.InvalidArgument("%s must be a string, got %T", key, raw)
	}
	return s, nil
}

// optionalInt reads an integer argument. JSON numbers decode as float64, so
// integral floats are accepted and fractional ones rejected.
func optionalInt(args map[string]interface{}, key string) (*int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		return &v, nil
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, errors.InvalidArgument("%s must be a number, got %q", key, v.String())
		}
		f = parsed
	default:
		return nil, errors.InvalidArgument("%s must be a number, got %T", key, raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, errors.InvalidArgument("%s must be an integer, got %v", key, f)
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return nil, errors.InvalidArgument("%s is out of range, got %v", key, f)
	}

	n := int(f)
	return &n, nil
}
