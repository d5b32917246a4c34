// Package testutil holds helpers shared by middleware tests.
package testutil

import (
	"context"
	"sync"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

// MockLogger captures log entries for assertions.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

// LogEntry is one captured log call.
type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

func (m *MockLogger) Debug(msg string, args ...any) { m.record("debug", msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.record("info", msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.record("warn", msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.record("error", msg, args) }

func (m *MockLogger) With(...any) logger.Logger {
	return m
}

func (m *MockLogger) WithContext(context.Context) logger.Logger {
	return m
}

// Entries returns a copy of the captured entries.
func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogEntry(nil), m.Logs...)
}

func (m *MockLogger) record(level, msg string, args []any) {
	fields := make(map[string]any)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Msg: msg, Fields: fields})
}
