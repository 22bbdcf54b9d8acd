package config

import (
	"log/slog"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"RECURD_DB_PATH",
		"RECURD_GENERATE_TIME",
		"RECURD_GENERATE_INTERVAL_MINUTES",
		"RECURD_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "recurd.db" || cfg.GenerateTime != "03:30" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.GenerateEvery != 0 {
		t.Fatalf("interval override should default off, got %s", cfg.GenerateEvery)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("log level = %v", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECURD_DB_PATH", "/tmp/other.db")
	t.Setenv("RECURD_GENERATE_TIME", "06:15")
	t.Setenv("RECURD_GENERATE_INTERVAL_MINUTES", "45")
	t.Setenv("RECURD_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" || cfg.GenerateTime != "06:15" {
		t.Fatalf("overrides = %+v", cfg)
	}
	if cfg.GenerateEvery != 45*time.Minute {
		t.Fatalf("interval = %s", cfg.GenerateEvery)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("log level = %v", cfg.LogLevel)
	}
}

func TestLoadRejectsBadGenerateTime(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECURD_GENERATE_TIME", "quarter past six")
	if _, err := Load(); err == nil {
		t.Fatal("malformed generate time accepted")
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECURD_LOG_LEVEL", "loud")
	if _, err := Load(); err == nil {
		t.Fatal("unknown log level accepted")
	}
}

func TestLoadIgnoresUnparsableInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECURD_GENERATE_INTERVAL_MINUTES", "soon")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GenerateEvery != 0 {
		t.Fatalf("interval = %s", cfg.GenerateEvery)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if err != nil {
			t.Errorf("parseLevel(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
