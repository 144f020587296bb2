package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"pmpv/internal/core"
)

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupInstallsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger, err := Setup(&buf, "warn", ComponentCLI)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	slog.Info("hidden")
	slog.Warn("shown")
	logger.Error("wrapped")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("level not applied: %s", out)
	}
	if !strings.Contains(out, "component=cli") {
		t.Errorf("wrapper should add the component: %s", out)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf, ComponentApp)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	})
	handler = ComponentMiddleware(ComponentHTTP)(handler)
	handler = RequestIDMiddleware(func(*http.Request) string { return "req_1" })(handler)
	handler = Middleware(base)(handler)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions", nil))

	out := buf.String()
	if !strings.Contains(out, "request_id=req_1") || !strings.Contains(out, "component=http") {
		t.Errorf("context logger missing fields: %s", out)
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{500, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		base := bufferLogger(&buf, ComponentHTTP)
		ctx := context.WithValue(context.Background(), LoggerContextKey, base)
		r := httptest.NewRequest(http.MethodGet, "/sessions/1", nil)

		NewStructuredLogger(base).LogHTTPEnd(ctx, r, tt.status, 3, "127.0.0.1")

		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("status %d: expected %s in %s", tt.status, tt.level, out)
		}
	}
}

func TestLogCalculationAndError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf, ComponentQuarter))

	sl.LogCalculation(context.Background(), 4, core.StoredResult{
		ID: 9,
		QuarterlyResult: core.QuarterlyResult{
			TotalVolume: decimal.RequireFromString("5480000"),
			PMPV:        decimal.RequireFromString("11.5715"),
			FinalPrice:  decimal.RequireFromString("11.8215"),
		},
	})
	sl.LogError(context.Background(), "export failed", errors.New("boom"), ComponentSheets, OpExport, nil)

	out := buf.String()
	for _, want := range []string{"session_id=4", "pmpv=11.5715", "operation=calculate", "error=boom", "operation=export"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}
