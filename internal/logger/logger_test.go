package logger

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
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestBuild_AddsModeAndComponent(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info", Mode: "task", Component: "editor"}, &buf)
	zl.Info().Msg("hello")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines want 1", len(lines))
	}
	l := lines[0]
	if l["msg"] != "hello" || l["mode"] != "task" || l["component"] != "editor" {
		t.Fatalf("unexpected fields: %v", l)
	}
	if _, ok := l["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", l)
	}
}

func TestSlogBridge_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)
	sl := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithPopupID(ctx, "p-1")
	ctx = WithMode(ctx, "checkpoint")
	sl.InfoContext(ctx, "popup saved", "feature_id", 3)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines want 1", len(lines))
	}
	l := lines[0]
	if l["request_id"] != "req-1" || l["popup_id"] != "p-1" || l["mode"] != "checkpoint" {
		t.Fatalf("missing context fields: %v", l)
	}
	if l["feature_id"] != float64(3) {
		t.Fatalf("feature_id=%v", l["feature_id"])
	}
}

func TestSlogBridge_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	sl := NewSlog(&zl)

	sl.Info("dropped")
	sl.Warn("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "kept" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if lines[0]["level"] != "warn" {
		t.Fatalf("level=%v", lines[0]["level"])
	}

	// restore for other tests in the package
	_ = Build(Config{Level: "info"}, &buf)
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	v, _ := ctx.Value(ctxReqIDKey).(string)
	if len(v) != 16 {
		t.Fatalf("generated id %q want 16 hex chars", v)
	}
}
