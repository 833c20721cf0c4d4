package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestF(t *testing.T) {
	tests := []struct {
		name     string
		keyvals  []interface{}
		expected map[string]interface{}
	}{
		{
			name:     "single pair",
			keyvals:  []interface{}{"key", "value"},
			expected: map[string]interface{}{"key": "value"},
		},
		{
			name:     "multiple pairs",
			keyvals:  []interface{}{"key1", "val1", "key2", 123, "key3", true},
			expected: map[string]interface{}{"key1": "val1", "key2": 123, "key3": true},
		},
		{
			name:     "empty",
			keyvals:  []interface{}{},
			expected: map[string]interface{}{},
		},
		{
			name:     "odd number of args (last ignored)",
			keyvals:  []interface{}{"key1", "val1", "key2"},
			expected: map[string]interface{}{"key1": "val1"},
		},
		{
			name:     "non-string key (ignored)",
			keyvals:  []interface{}{123, "value", "realkey", "realvalue"},
			expected: map[string]interface{}{"realkey": "realvalue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := F(tt.keyvals...)
			for k, v := range tt.expected {
				if result[k] != v {
					t.Errorf("F() key %q = %v, expected %v", k, result[k], v)
				}
			}
			if len(result) != len(tt.expected) {
				t.Errorf("F() returned %d fields, expected %d", len(result), len(tt.expected))
			}
		})
	}
}

func TestLogEntryFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(io.Discard)

	Info("test message", F("request", "VisitsSummary.get", "round", 2))

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "test message" {
		t.Errorf("expected message 'test message', got %q", entry.Message)
	}
	if entry.Fields["request"] != "VisitsSummary.get" {
		t.Errorf("expected request field, got %v", entry.Fields["request"])
	}
	if entry.Time == "" {
		t.Error("expected non-empty timestamp")
	}
}

func TestSetLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetOutput(io.Discard)
		SetLevel(LevelInfo)
	}()

	SetLevel(LevelWarn)
	Debug("hidden")
	Info("hidden too")
	Warn("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "visible") {
		t.Errorf("expected the WARN line, got %q", lines[0])
	}
}

func TestLevelsEmitInOrder(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetOutput(io.Discard)
		SetLevel(LevelInfo)
	}()
	SetLevel(LevelDebug)

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(lines))
	}
	want := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	for i, level := range want {
		if !strings.Contains(lines[i], level) {
			t.Errorf("line %d: expected level %s, got %q", i, level, lines[i])
		}
	}
}
