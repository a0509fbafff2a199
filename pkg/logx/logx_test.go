package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

// setupTestLogger redirects log output into a buffer.
func setupTestLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("workflow")
	if logger.Component() != "workflow" {
		t.Errorf("Expected component 'workflow', got '%s'", logger.Component())
	}
}

func TestLogFormat(t *testing.T) {
	buf := setupTestLogger(t)

	logger := NewLogger("riskapi")
	logger.Info("Test message with %s", "formatting")

	output := buf.String()
	if !strings.Contains(output, "[riskapi]") {
		t.Errorf("Expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO") {
		t.Errorf("Expected log level in output, got: %s", output)
	}
	if !strings.Contains(output, "Test message with formatting") {
		t.Errorf("Expected formatted message in output, got: %s", output)
	}

	start := strings.Index(output, "[")
	end := strings.Index(output, "]")
	if start < 0 || end <= start {
		t.Fatalf("Expected bracketed timestamp, got: %s", output)
	}
	if _, err := time.Parse(timestampLayout, output[start+1:end]); err != nil {
		t.Errorf("Timestamp not in expected layout: %v", err)
	}
}

func TestLogLevels(t *testing.T) {
	logger := NewLogger("test")

	tests := []struct {
		level    Level
		logFunc  func(string, ...any)
		expected string
	}{
		{LevelDebug, logger.Debug, "DEBUG"},
		{LevelInfo, logger.Info, "INFO"},
		{LevelWarn, logger.Warn, "WARN"},
		{LevelError, logger.Error, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := setupTestLogger(t)

			if tt.level == LevelDebug {
				SetDebug(true)
				defer SetDebug(false)
			}

			tt.logFunc("test message")

			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("Expected level '%s' in output, got: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestDebugDisabledWritesNothing(t *testing.T) {
	buf := setupTestLogger(t)
	SetDebug(false)

	NewLogger("quiet").Debug("hidden")
	Debug(context.Background(), "workflow", "hidden too")

	if buf.Len() != 0 {
		t.Errorf("Expected no output with debug disabled, got: %s", buf.String())
	}
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := setupTestLogger(t)
	SetDebug(true)
	SetDebugDomains([]string{"riskapi"})
	defer func() {
		SetDebug(false)
		SetDebugDomains(nil)
	}()

	ctx := WithRunID(context.Background(), "run-1")
	Debug(ctx, "riskapi", "POST %s", "/api/v1/analyze/initial")
	Debug(ctx, "workflow", "should be filtered")

	output := buf.String()
	if !strings.Contains(output, "/api/v1/analyze/initial") {
		t.Errorf("Expected riskapi debug line, got: %s", output)
	}
	if !strings.Contains(output, "run-1") {
		t.Errorf("Expected run id in output, got: %s", output)
	}
	if strings.Contains(output, "should be filtered") {
		t.Errorf("Workflow domain should be filtered, got: %s", output)
	}
}

func TestRecentLogEntries(t *testing.T) {
	setupTestLogger(t)
	SetDebug(true)
	defer SetDebug(false)

	before := time.Now().Add(-time.Second)
	DebugFlow(WithRunID(context.Background(), "run-2"), "journal-test", "start", "ok")

	entries := GetRecentLogEntries("journal-test", before)
	if len(entries) == 0 {
		t.Fatal("Expected at least one buffered entry")
	}
	last := entries[len(entries)-1]
	if last.RunID != "run-2" {
		t.Errorf("Expected run id run-2, got %q", last.RunID)
	}
	if !strings.Contains(last.Message, "Flow start: ok") {
		t.Errorf("Unexpected message %q", last.Message)
	}
}

func TestBufferBounded(t *testing.T) {
	b := &InMemoryLogBuffer{maxSize: 3}
	for i := 0; i < 5; i++ {
		b.AddLogEntry(&LogEntry{Message: string(rune('a' + i))})
	}
	entries := b.GetLogEntries("", time.Time{})
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "c" {
		t.Errorf("Expected oldest kept entry 'c', got %q", entries[0].Message)
	}
}

func TestWrap(t *testing.T) {
	setupTestLogger(t)

	if Wrap(nil, "noop") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := errors.New("boom")
	err := Wrap(base, "open store")
	if !errors.Is(err, base) {
		t.Error("Wrapped error should unwrap to base")
	}
	if err.Error() != "open store: boom" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
	if got := Truncate("abcdefghij", 4); got != "abcd...[10 bytes]" {
		t.Errorf("Unexpected truncation %q", got)
	}
}

func TestTruncateKeepsCharactersWhole(t *testing.T) {
	body := `{"detail":"세션이 만료되었습니다"}`
	for n := 1; n < len(body); n++ {
		got := Truncate(body, n)
		if !utf8.ValidString(got) {
			t.Fatalf("Truncate(%d) split a character: %q", n, got)
		}
	}
	if got := Truncate("가나다", 4); got != "가...[9 bytes]" {
		t.Errorf("Unexpected truncation %q", got)
	}
	if got := Truncate("가나다", 2); got != "...[9 bytes]" {
		t.Errorf("Unexpected truncation %q", got)
	}
}

func TestDebugState(t *testing.T) {
	buf := setupTestLogger(t)
	SetDebug(true)
	defer SetDebug(false)

	NewLogger("workflow").DebugState("request launched", "starting", "epoch 3")
	if !strings.Contains(buf.String(), "DEBUG: State request launched: starting - epoch 3") {
		t.Errorf("Unexpected debug state line: %s", buf.String())
	}
}
