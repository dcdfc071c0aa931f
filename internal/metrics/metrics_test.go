package metrics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	lwerrors "github.com/bebsworthy/logwatch/internal/errors"
)

// TestNewMonitor tests monitor creation
func TestNewMonitor(t *testing.T) {
	monitor := NewMonitor()

	if monitor == nil {
		t.Fatal("Expected monitor to be created")
	}

	if monitor.operations == nil {
		t.Error("Expected operations map to be initialized")
	}

	if monitor.errors == nil {
		t.Error("Expected errors map to be initialized")
	}
}

// TestTrackOperation tests operation tracking
func TestTrackOperation(t *testing.T) {
	monitor := NewMonitor()

	err := monitor.TrackOperation(context.Background(), "get_logs", func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	metrics := monitor.GetOperationMetrics("get_logs")
	if metrics == nil {
		t.Fatal("Expected operation metrics to be recorded")
	}
	if metrics.Count != 1 || metrics.Successes != 1 || metrics.Errors != 0 {
		t.Errorf("Unexpected counters after success: %+v", metrics)
	}
	if metrics.TotalDuration <= 0 {
		t.Error("Expected positive total duration")
	}

	testErr := errors.New("grep exploded")
	err = monitor.TrackOperation(context.Background(), "get_logs", func() error {
		return testErr
	})
	if err != testErr {
		t.Errorf("Expected test error to be returned, got %v", err)
	}

	metrics = monitor.GetOperationMetrics("get_logs")
	if metrics.Count != 2 {
		t.Errorf("Expected count 2, got %d", metrics.Count)
	}
	if metrics.Errors != 1 {
		t.Errorf("Expected errors 1, got %d", metrics.Errors)
	}
	if metrics.MinDuration > metrics.MaxDuration {
		t.Errorf("Min duration %v exceeds max %v", metrics.MinDuration, metrics.MaxDuration)
	}

	if monitor.GetOperationMetrics("search_logs") != nil {
		t.Error("Expected nil metrics for untracked operation")
	}
}

// TestRecordOutcome tests result kind counters
func TestRecordOutcome(t *testing.T) {
	monitor := NewMonitor()

	monitor.RecordOutcome("get_errors", "empty")
	monitor.RecordOutcome("get_errors", "empty")
	monitor.RecordOutcome("get_errors", "absent")

	metrics := monitor.GetOperationMetrics("get_errors")
	if metrics == nil {
		t.Fatal("Expected metrics for get_errors")
	}
	if metrics.Outcomes["empty"] != 2 || metrics.Outcomes["absent"] != 1 {
		t.Errorf("Unexpected outcomes: %v", metrics.Outcomes)
	}

	// Returned metrics are copies
	metrics.Outcomes["empty"] = 100
	if monitor.GetOperationMetrics("get_errors").Outcomes["empty"] != 2 {
		t.Error("Expected outcome map to be copied")
	}
}

// TestTrackError tests error tracking
func TestTrackError(t *testing.T) {
	monitor := NewMonitor()

	monitor.TrackError(context.Background(), "validation", "INVALID_SOURCE", "server", "Invalid source: rails")
	monitor.TrackError(context.Background(), "validation", "INVALID_SOURCE", "server", "Invalid source: django")

	errorMetrics := monitor.GetErrorMetrics()
	entry, ok := errorMetrics["validation:INVALID_SOURCE"]
	if !ok {
		t.Fatal("Expected error metrics to be recorded")
	}
	if entry.Count != 2 {
		t.Errorf("Expected count 2, got %d", entry.Count)
	}
	if entry.Message != "Invalid source: django" {
		t.Errorf("Expected last message to be kept, got %q", entry.Message)
	}
	if entry.Component != "server" {
		t.Errorf("Expected component 'server', got %q", entry.Component)
	}
}

// TestGetAllOperationMetrics tests retrieving every operation
func TestGetAllOperationMetrics(t *testing.T) {
	monitor := NewMonitor()

	for _, op := range []string{"get_logs", "search_logs", "clear_logs"} {
		_ = monitor.TrackOperation(context.Background(), op, func() error { return nil })
	}

	all := monitor.GetAllOperationMetrics()
	if len(all) != 3 {
		t.Errorf("Expected 3 operations, got %d", len(all))
	}
	for _, op := range []string{"get_logs", "search_logs", "clear_logs"} {
		if all[op] == nil || all[op].Count != 1 {
			t.Errorf("Expected one call recorded for %s", op)
		}
	}
}

// TestTrackOperation_LogLevels tests that rejected requests log below Error
func TestTrackOperation_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	monitor := NewMonitor()
	monitor.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	_ = monitor.TrackOperation(context.Background(), "get_logs", func() error {
		return lwerrors.InvalidSource("django", []string{"expo", "nodejs"})
	})
	rejected := buf.String()
	buf.Reset()

	_ = monitor.TrackOperation(context.Background(), "search_logs", func() error {
		return lwerrors.ExecutionFailure("grep: bad file", errors.New("exit status 2"))
	})
	failed := buf.String()

	if !strings.Contains(rejected, "level=WARN") || !strings.Contains(rejected, "status=rejected") {
		t.Errorf("Expected validation error at WARN, got %s", rejected)
	}
	if strings.Contains(rejected, "level=ERROR") {
		t.Errorf("Expected no ERROR line for a rejected request, got %s", rejected)
	}
	if !strings.Contains(failed, "level=ERROR") || !strings.Contains(failed, "status=error") {
		t.Errorf("Expected execution failure at ERROR, got %s", failed)
	}

	metrics := monitor.GetOperationMetrics("get_logs")
	if metrics.Errors != 1 {
		t.Errorf("Expected rejected call to count as unsuccessful, got %+v", metrics)
	}
}

// TestConcurrentTracking tests that the monitor is safe for concurrent use
func TestConcurrentTracking(t *testing.T) {
	monitor := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = monitor.TrackOperation(context.Background(), "get_logs", func() error { return nil })
			monitor.RecordOutcome("get_logs", "ok")
		}()
	}
	wg.Wait()

	metrics := monitor.GetOperationMetrics("get_logs")
	if metrics.Count != 50 {
		t.Errorf("Expected count 50, got %d", metrics.Count)
	}
	if metrics.Outcomes["ok"] != 50 {
		t.Errorf("Expected 50 ok outcomes, got %d", metrics.Outcomes["ok"])
	}
}

// TestMetricsWithLogger tests that tracked calls and the summary are logged
func TestMetricsWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	monitor := NewMonitor()
	monitor.SetLogger(logger)

	_ = monitor.TrackOperation(context.Background(), "get_logs", func() error { return nil })
	_ = monitor.TrackOperation(context.Background(), "search_logs", func() error { return errors.New("boom") })
	monitor.TrackError(context.Background(), "exec", "EXECUTION_FAILED", "query", "boom")
	monitor.LogMetricsSummary(context.Background())

	output := buf.String()
	for _, want := range []string{
		"component=metrics",
		"operation=get_logs",
		"status=error",
		"Metrics summary",
		"error_code=EXECUTION_FAILED",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output", want)
		}
	}
}

// BenchmarkTrackOperation benchmarks operation tracking
func BenchmarkTrackOperation(b *testing.B) {
	monitor := NewMonitor()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = monitor.TrackOperation(ctx, "get_logs", func() error { return nil })
	}
}
