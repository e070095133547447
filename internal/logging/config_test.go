package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{raw: "", want: zerolog.InfoLevel, wantOK: false},
		{raw: "TRACE", want: zerolog.TraceLevel, wantOK: true},
		{raw: " debug ", want: zerolog.DebugLevel, wantOK: true},
		{raw: "warning", want: zerolog.WarnLevel, wantOK: true},
		{raw: "off", want: zerolog.Disabled, wantOK: true},
		{raw: "loud", want: zerolog.InfoLevel, wantOK: false},
	}
	for _, tc := range tests {
		got, ok := ParseLevel(tc.raw)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v,%v", tc.raw, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogJSON, "not-a-bool")

	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("level=%v", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("expected timestamps disabled")
	}
	if !cfg.NoColor {
		t.Fatalf("expected color disabled")
	}
	if cfg.JSON {
		t.Fatalf("invalid bool must not flip json output")
	}
}

func TestNewJSONLoggerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.WarnLevel, JSON: true, Out: &buf})
	logger.Info().Msg("hidden")
	logger.Warn().Str("command", "FindImage").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked through warn level: %s", out)
	}
	if !strings.Contains(out, `"command":"FindImage"`) {
		t.Fatalf("expected structured field, got %s", out)
	}
}

func TestNewConsoleLoggerWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.DebugLevel, NoColor: true, Out: &buf})
	logger.Debug().Msg("query.Build")
	if !strings.Contains(buf.String(), "query.Build") {
		t.Fatalf("expected message in console output, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected no ansi color codes")
	}
}

func TestApplyLevelDefersToEnv(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	t.Setenv(EnvLogLevel, "")
	if !ApplyLevel("warn") || zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("expected config level to apply, got %v", zerolog.GlobalLevel())
	}
	if ApplyLevel("shouting") {
		t.Fatalf("unknown level must be ignored")
	}
	t.Setenv(EnvLogLevel, "error")
	if ApplyLevel("debug") || zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("env level must win over config")
	}
}
