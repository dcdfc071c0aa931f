package e2e

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestMCPServer_ToolsList(t *testing.T) {
	suite := NewE2ETestSuite(t)
	suite.StartMCPServer()

	response, err := suite.SendMCPRequest("tools/list", map[string]interface{}{})
	if err != nil {
		t.Fatalf("tools/list failed: %v", err)
	}

	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(response.Result, &result); err != nil {
		t.Fatalf("Invalid tools/list result: %v", err)
	}

	found := make(map[string]bool)
	for _, tool := range result.Tools {
		found[tool.Name] = true
	}
	for _, name := range []string{"get_logs", "get_errors", "search_logs", "clear_logs", "setup_capture", "list_sources"} {
		if !found[name] {
			t.Errorf("Expected tool %s to be listed", name)
		}
	}
	if len(result.Tools) != 6 {
		t.Errorf("Expected 6 tools, got %d", len(result.Tools))
	}
}

func TestMCPServer_QueryLifecycle(t *testing.T) {
	suite := NewE2ETestSuite(t)
	suite.StartMCPServer()

	// No capture yet: guidance instead of an error
	result, err := suite.CallTool("get_logs", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError || !strings.HasPrefix(result.Text(), "No log file found for expo") {
		t.Errorf("Expected setup guidance, got %+v", result)
	}

	suite.WriteLog("expo", "Starting Metro\nERROR: bundle failed\nReloading app\n")

	result, err = suite.CallTool("get_logs", map[string]interface{}{"lines": 2})
	if err != nil {
		t.Fatal(err)
	}
	if result.Text() != "ERROR: bundle failed\nReloading app\n" {
		t.Errorf("Unexpected get_logs text %q", result.Text())
	}

	result, err = suite.CallTool("get_errors", map[string]interface{}{"source": "expo"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Text() != "ERROR: bundle failed\n" {
		t.Errorf("Unexpected get_errors text %q", result.Text())
	}

	result, err = suite.CallTool("search_logs", map[string]interface{}{"pattern": "metro"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Text() != "Starting Metro\n" {
		t.Errorf("Unexpected search_logs text %q", result.Text())
	}

	result, err = suite.CallTool("clear_logs", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Text() != "Logs cleared for expo" {
		t.Errorf("Unexpected clear_logs text %q", result.Text())
	}

	info, err := os.Stat(suite.LogPath("expo"))
	if err != nil {
		t.Fatalf("Log file should survive clearing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("Expected empty log file, got %d bytes", info.Size())
	}

	result, err = suite.CallTool("get_logs", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Text() != "No logs for expo" {
		t.Errorf("Unexpected text after clear %q", result.Text())
	}
}

func TestMCPServer_ToolErrors(t *testing.T) {
	suite := NewE2ETestSuite(t)
	suite.StartMCPServer()

	result, err := suite.CallTool("get_logs", map[string]interface{}{"source": "django"})
	if err != nil {
		t.Fatalf("Invalid source must not be a protocol error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected isError for an invalid source")
	}
	if result.Text() != "Invalid source: django. Valid sources: expo, nodejs" {
		t.Errorf("Unexpected text %q", result.Text())
	}

	result, err = suite.CallTool("search_logs", map[string]interface{}{"pattern": ""})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("Expected isError for an empty pattern")
	}
}

func TestMCPServer_SourcesAndSetup(t *testing.T) {
	suite := NewE2ETestSuite(t)
	suite.StartMCPServer()
	suite.WriteLog("nodejs", "listening on 3000\n")

	result, err := suite.CallTool("list_sources", nil)
	if err != nil {
		t.Fatal(err)
	}
	text := result.Text()
	if !strings.Contains(text, "### expo\n- **Status:** No log file\n") {
		t.Errorf("Expected expo to have no log file:\n%s", text)
	}
	if !strings.Contains(text, "### nodejs\n- **Status:** Active (last modified: ") {
		t.Errorf("Expected nodejs to be active:\n%s", text)
	}

	result, err = suite.CallTool("setup_capture", map[string]interface{}{"source": "nodejs"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(result.Text(), "## Log Capture Setup for Nodejs\n") {
		t.Errorf("Unexpected setup text %q", result.Text())
	}
}
