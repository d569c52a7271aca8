package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line as JSON: %v\nLine: %s", err, line)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_IncludesRouteFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithRoute(RouteMeta{
		Path: []string{"users", "posts", "get"},
		Kind: "infinite",
	})

	logger.Info(context.Background(), "page fetched", Field{Key: "page", Value: 2})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(entries))
	}
	entry := entries[0]
	if entry["route.path"] != "users.posts.get" {
		t.Errorf("route.path = %v, want users.posts.get", entry["route.path"])
	}
	if entry["route.method"] != "get" {
		t.Errorf("route.method = %v, want get", entry["route.method"])
	}
	if entry["route.kind"] != "infinite" {
		t.Errorf("route.kind = %v, want infinite", entry["route.kind"])
	}
	if entry["page"] != float64(2) {
		t.Errorf("page = %v, want 2", entry["page"])
	}
	if entry["level"] != "info" || entry["msg"] != "page fetched" {
		t.Errorf("level/msg = %v/%v", entry["level"], entry["msg"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	ctx := context.Background()
	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log lines at warn level, got %d", len(entries))
	}
	if entries[0]["msg"] != "warn" || entries[1]["msg"] != "error" {
		t.Errorf("unexpected messages: %v, %v", entries[0]["msg"], entries[1]["msg"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Debug(context.Background(), "mutate",
		Field{Key: "input", Value: map[string]any{"password": "hunter2"}},
		Field{Key: "variables", Value: "secret payload"},
		Field{Key: "token", Value: "abc"},
		Field{Key: "status", Value: 201},
	)

	entry := decodeLines(t, &buf)[0]
	for _, k := range []string{"input", "variables", "token"} {
		if entry[k] != "[REDACTED]" {
			t.Errorf("%s = %v, want [REDACTED]", k, entry[k])
		}
	}
	if entry["status"] != float64(201) {
		t.Errorf("status = %v, want 201", entry["status"])
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Error("log output leaked a redacted value")
	}
}

func TestLogger_WithRouteDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf)
	_ = parent.WithRoute(RouteMeta{Path: []string{"users", "get"}})

	parent.Info(context.Background(), "plain")

	entry := decodeLines(t, &buf)[0]
	if _, ok := entry["route.path"]; ok {
		t.Error("parent logger picked up route fields")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"error":   LevelError,
		"unknown": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
