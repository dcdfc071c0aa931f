// Package metrics tracks tool call performance for LogWatch.
//
// This package implements:
// - Per-tool timing (count, min/avg/max duration)
// - Outcome counters (ok, empty, absent, failed)
// - Error tracking by code
// - A summary written to the structured log at shutdown
//
// Example usage:
//
//	monitor := metrics.NewMonitor()
//	monitor.SetLogger(logger.Logger)
//
//	err := monitor.TrackOperation(ctx, "get_logs", func() error {
//		return nil
//	})
package metrics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bebsworthy/logwatch/internal/errors"
)

// Monitor provides performance monitoring functionality
type Monitor struct {
	logger *slog.Logger
	mu     sync.RWMutex

	operations map[string]*OperationMetrics
	errors     map[string]*ErrorMetrics
}

// OperationMetrics tracks metrics for one tool
type OperationMetrics struct {
	Name            string           `json:"name"`
	Count           int64            `json:"count"`
	TotalDuration   time.Duration    `json:"total_duration"`
	AverageDuration time.Duration    `json:"average_duration"`
	MinDuration     time.Duration    `json:"min_duration"`
	MaxDuration     time.Duration    `json:"max_duration"`
	LastExecution   time.Time        `json:"last_execution"`
	Errors          int64            `json:"errors"`
	Successes       int64            `json:"successes"`
	Outcomes        map[string]int64 `json:"outcomes"`
}

// ErrorMetrics tracks error occurrences by code
type ErrorMetrics struct {
	Type         string    `json:"type"`
	Code         string    `json:"code"`
	Count        int64     `json:"count"`
	LastOccurred time.Time `json:"last_occurred"`
	Component    string    `json:"component"`
	Message      string    `json:"message"`
}

// NewMonitor creates a new performance monitor
func NewMonitor() *Monitor {
	return &Monitor{
		operations: make(map[string]*OperationMetrics),
		errors:     make(map[string]*ErrorMetrics),
	}
}

// SetLogger sets the logger for metrics output
func (m *Monitor) SetLogger(logger *slog.Logger) {
	m.logger = logger.With(slog.String("component", "metrics"))
}

// TrackOperation times fn and records its outcome under operation
func (m *Monitor) TrackOperation(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	m.recordOperation(operation, duration, err == nil)

	if m.logger != nil {
		level := slog.LevelDebug
		status := "success"
		attrs := []slog.Attr{
			slog.String("operation", operation),
			slog.Duration("duration", duration),
		}
		switch {
		case err == nil:
		case errors.IsType(err, errors.ErrorTypeValidation):
			// Caller mistakes, not server faults
			level = slog.LevelWarn
			status = "rejected"
			attrs = append(attrs, slog.String("error", err.Error()))
		default:
			level = slog.LevelError
			status = "error"
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		attrs = append(attrs, slog.String("status", status))

		m.logger.LogAttrs(ctx, level, "Operation completed", attrs...)
	}

	return err
}

// RecordOutcome counts a result kind for an operation
func (m *Monitor) RecordOutcome(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.operationUnsafe(operation, 0)
	if metrics.Outcomes == nil {
		metrics.Outcomes = make(map[string]int64)
	}
	metrics.Outcomes[outcome]++
}

func (m *Monitor) operationUnsafe(name string, duration time.Duration) *OperationMetrics {
	metrics, exists := m.operations[name]
	if !exists {
		metrics = &OperationMetrics{
			Name:        name,
			MinDuration: duration,
			MaxDuration: duration,
		}
		m.operations[name] = metrics
	}
	return metrics
}

// recordOperation records operation metrics
func (m *Monitor) recordOperation(name string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.operationUnsafe(name, duration)

	metrics.Count++
	metrics.TotalDuration += duration
	metrics.LastExecution = time.Now()

	if metrics.Count == 1 || duration < metrics.MinDuration {
		metrics.MinDuration = duration
	}
	if duration > metrics.MaxDuration {
		metrics.MaxDuration = duration
	}

	metrics.AverageDuration = time.Duration(int64(metrics.TotalDuration) / metrics.Count)

	if success {
		metrics.Successes++
	} else {
		metrics.Errors++
	}
}

// TrackError tracks error occurrences
func (m *Monitor) TrackError(ctx context.Context, errorType, code, component, message string) {
	key := errorType + ":" + code

	m.mu.Lock()
	errorMetrics, exists := m.errors[key]
	if !exists {
		errorMetrics = &ErrorMetrics{
			Type:      errorType,
			Code:      code,
			Component: component,
		}
		m.errors[key] = errorMetrics
	}

	errorMetrics.Count++
	errorMetrics.Message = message
	errorMetrics.LastOccurred = time.Now()
	count := errorMetrics.Count
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.WarnContext(ctx, "Error tracked",
			slog.String("error_type", errorType),
			slog.String("error_code", code),
			slog.String("component", component),
			slog.Int64("count", count),
			slog.String("message", message),
		)
	}
}

func copyOperation(metrics *OperationMetrics) *OperationMetrics {
	c := *metrics
	if metrics.Outcomes != nil {
		c.Outcomes = make(map[string]int64, len(metrics.Outcomes))
		for k, v := range metrics.Outcomes {
			c.Outcomes[k] = v
		}
	}
	return &c
}

// GetOperationMetrics returns metrics for a specific operation
func (m *Monitor) GetOperationMetrics(operation string) *OperationMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metrics, exists := m.operations[operation]; exists {
		return copyOperation(metrics)
	}
	return nil
}

// GetAllOperationMetrics returns a copy of every operation's metrics
func (m *Monitor) GetAllOperationMetrics() map[string]*OperationMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*OperationMetrics, len(m.operations))
	for name, metrics := range m.operations {
		result[name] = copyOperation(metrics)
	}
	return result
}

// GetErrorMetrics returns all error metrics
func (m *Monitor) GetErrorMetrics() map[string]*ErrorMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*ErrorMetrics, len(m.errors))
	for key, metrics := range m.errors {
		c := *metrics
		result[key] = &c
	}
	return result
}

// LogMetricsSummary logs a summary of all collected metrics. It works from
// a snapshot so tool calls are not blocked while the summary is written.
func (m *Monitor) LogMetricsSummary(ctx context.Context) {
	if m.logger == nil {
		return
	}

	operations := m.GetAllOperationMetrics()
	errorMetrics := m.GetErrorMetrics()

	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)

	m.logger.InfoContext(ctx, "Metrics summary",
		slog.Int("operations", len(operations)),
		slog.Int("error_types", len(errorMetrics)),
	)

	for _, name := range names {
		metrics := operations[name]
		successRate := float64(0)
		if metrics.Count > 0 {
			successRate = float64(metrics.Successes) / float64(metrics.Count) * 100
		}

		m.logger.InfoContext(ctx, "Operation metrics",
			slog.String("operation", name),
			slog.Int64("count", metrics.Count),
			slog.Duration("avg_duration", metrics.AverageDuration),
			slog.Duration("min_duration", metrics.MinDuration),
			slog.Duration("max_duration", metrics.MaxDuration),
			slog.Float64("success_rate", successRate),
			slog.Any("outcomes", metrics.Outcomes),
		)
	}

	keys := make([]string, 0, len(errorMetrics))
	for key := range errorMetrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		metrics := errorMetrics[key]
		m.logger.InfoContext(ctx, "Error metrics",
			slog.String("error_type", metrics.Type),
			slog.String("error_code", metrics.Code),
			slog.String("component", metrics.Component),
			slog.Int64("count", metrics.Count),
			slog.Time("last_occurred", metrics.LastOccurred),
		)
	}
}
