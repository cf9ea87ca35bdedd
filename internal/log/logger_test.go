package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONFormatIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentRefresh, Output: &buf})
	l.Info("Refresh completed", FieldRows, 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentRefresh {
		t.Fatalf("component missing: %v", rec)
	}
	if rec[FieldRows] != float64(3) {
		t.Fatalf("rows missing: %v", rec)
	}
}

func TestTextFormatRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("hidden")
	l.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "component=app") {
		t.Fatalf("default component missing: %s", out)
	}
}

func TestWithComponentDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf}).WithComponent(ComponentHTTP)
	l.Info("x")
	if n := strings.Count(buf.String(), "component="); n != 1 {
		t.Fatalf("expected exactly one component attr, got %d: %s", n, buf.String())
	}
	if l.Component() != ComponentHTTP {
		t.Fatalf("component = %q", l.Component())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected fallback logger")
	}
	l := New(DefaultConfig())
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Fatal("expected logger stored in context")
	}
}

func TestLogHTTPEndLevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf, Component: ComponentHTTP}))
	r := httptest.NewRequest("GET", "/refresh_data", nil)

	sl.LogHTTPEnd(context.Background(), r, "req_1", 503, 5*time.Millisecond, "10.0.0.1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["level"] != "ERROR" || rec[FieldStatusCode] != float64(503) || rec[FieldRequestID] != "req_1" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLogFieldsSkipsNilError(t *testing.T) {
	f := NewFields().WithError(nil).WithSheet("Expenses", 2)
	if _, ok := f[FieldError]; ok {
		t.Fatal("nil error should not be recorded")
	}
	f.WithError(errors.New("boom"))
	if f[FieldError] != "boom" || f[FieldRows] != 2 {
		t.Fatalf("unexpected fields: %v", f)
	}
}
