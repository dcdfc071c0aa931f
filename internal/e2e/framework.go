// Package e2e provides end-to-end testing of LogWatch using a real server process.
//
// These tests start the logwatch binary in serve mode and talk to it over
// stdin/stdout with JSON-RPC 2.0, the way an MCP client does. Sources point at
// files in a temporary directory so each suite controls its own log files.
//
// Build the binary first:
//
//	go build -o logwatch .
package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// responseTimeout bounds the wait for a single JSON-RPC response
const responseTimeout = 5 * time.Second

// configTemplate registers two sources under the suite's temp dir
const configTemplate = `default_source: expo
sources:
  - name: expo
    file: %[1]s/expo.log
    description: Expo/React Native development server
    capture_command: script -q %[1]s/expo.log npx expo start -c --go
  - name: nodejs
    file: %[1]s/node.log
    description: Node.js application
    capture_command: script -q %[1]s/node.log npm start
logging:
  level: debug
  output_file: %[1]s/logwatch.log
`

// E2ETestSuite drives one logwatch server process
type E2ETestSuite struct {
	t          *testing.T
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	responses  chan *MCPResponse
	binaryPath string
	tempDir    string
	mu         sync.Mutex
	reqID      int
}

// MCPRequest represents a JSON-RPC 2.0 request
type MCPRequest struct {
	JSONRpc string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// MCPResponse represents a JSON-RPC 2.0 response
type MCPResponse struct {
	JSONRpc string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   interface{}     `json:"error,omitempty"`
}

// ToolResult is the decoded result of a tools/call request
type ToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// Text returns the single text block every LogWatch tool answers with
func (r *ToolResult) Text() string {
	if len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

// NewE2ETestSuite creates a suite with its own temp dir and config file. The
// test is skipped when no logwatch binary has been built.
func NewE2ETestSuite(t *testing.T) *E2ETestSuite {
	t.Helper()

	binaryPath, err := findLogWatchBinary()
	if err != nil {
		t.Skip(err.Error())
	}

	tempDir := t.TempDir()
	cfg := fmt.Sprintf(configTemplate, tempDir)
	if err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	suite := &E2ETestSuite{
		t:          t,
		tempDir:    tempDir,
		binaryPath: binaryPath,
		reqID:      1,
	}
	t.Cleanup(suite.stop)

	t.Logf("E2E test suite initialized with temp dir: %s", tempDir)
	return suite
}

// findLogWatchBinary looks for the binary in the working directory and up to
// three parents, which covers running from the package or the module root.
func findLogWatchBinary() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for i := 0; i < 4; i++ {
		binaryPath := filepath.Join(cwd, "logwatch")
		if info, err := os.Stat(binaryPath); err == nil && !info.IsDir() {
			return binaryPath, nil
		}
		cwd = filepath.Dir(cwd)
	}

	return "", fmt.Errorf("logwatch binary not found, run 'go build -o logwatch .' from the module root")
}

// LogPath returns the log file of a source registered by the suite config
func (s *E2ETestSuite) LogPath(source string) string {
	name := source + ".log"
	if source == "nodejs" {
		name = "node.log"
	}
	return filepath.Join(s.tempDir, name)
}

// WriteLog replaces a source's log file content
func (s *E2ETestSuite) WriteLog(source, content string) {
	s.t.Helper()
	if err := os.WriteFile(s.LogPath(source), []byte(content), 0644); err != nil {
		s.t.Fatalf("Failed to write log: %v", err)
	}
}

// StartMCPServer starts logwatch serve and performs the initialize handshake
func (s *E2ETestSuite) StartMCPServer() {
	s.t.Helper()

	s.cmd = exec.Command(s.binaryPath, "--config", filepath.Join(s.tempDir, "config.yaml"), "serve")
	s.cmd.Dir = s.tempDir

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		s.t.Fatalf("Failed to create stdin pipe: %v", err)
	}
	s.stdin = stdin

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		s.t.Fatalf("Failed to create stdout pipe: %v", err)
	}

	if err := s.cmd.Start(); err != nil {
		s.t.Fatalf("Failed to start MCP server: %v", err)
	}

	s.responses = make(chan *MCPResponse, 16)
	go s.readResponses(stdout)

	s.t.Logf("MCP server started (PID: %d)", s.cmd.Process.Pid)

	if _, err := s.SendMCPRequest("initialize", map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "e2e-test-client",
			"version": "1.0.0",
		},
	}); err != nil {
		s.t.Fatalf("Initialize failed: %v", err)
	}
}

// readResponses is the single reader of the server's stdout
func (s *E2ETestSuite) readResponses(stdout io.Reader) {
	defer close(s.responses)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()

		var response MCPResponse
		if err := json.Unmarshal(line, &response); err != nil {
			continue
		}
		// Notifications carry no id
		if response.ID == 0 {
			continue
		}
		s.responses <- &response
	}
}

// SendMCPRequest sends a JSON-RPC 2.0 request and waits for its response
func (s *E2ETestSuite) SendMCPRequest(method string, params interface{}) (*MCPResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqID := s.reqID
	s.reqID++

	requestJSON, err := json.Marshal(MCPRequest{
		JSONRpc: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, err := s.stdin.Write(append(requestJSON, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), responseTimeout)
	defer cancel()

	for {
		select {
		case response, ok := <-s.responses:
			if !ok {
				return nil, fmt.Errorf("server closed stdout before answering %s", method)
			}
			if response.ID != reqID {
				continue
			}
			if response.Error != nil {
				return nil, fmt.Errorf("%s returned error: %v", method, response.Error)
			}
			return response, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for %s response", method)
		}
	}
}

// CallTool invokes a tool and decodes its result
func (s *E2ETestSuite) CallTool(name string, args map[string]interface{}) (*ToolResult, error) {
	response, err := s.SendMCPRequest("tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}

	var result ToolResult
	if err := json.Unmarshal(response.Result, &result); err != nil {
		return nil, fmt.Errorf("invalid tool result: %w", err)
	}
	return &result, nil
}

// stop closes stdin, which ends the stdio transport, and kills the server if
// it does not exit on its own.
func (s *E2ETestSuite) stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}

	_ = s.stdin.Close()

	done := make(chan struct{})
	go func() {
		_ = s.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = s.cmd.Process.Kill()
		<-done
	}
}
