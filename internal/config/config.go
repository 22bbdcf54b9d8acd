// Package config reads runtime settings from the environment with sane
// defaults; nothing here is required.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBPath        string
	GenerateTime  string        // HH:MM, daily maintenance time
	GenerateEvery time.Duration // optional interval override; 0 means daily
	LogLevel      slog.Level
}

func Default() Config {
	return Config{
		DBPath:       "recurd.db",
		GenerateTime: "03:30",
		LogLevel:     slog.LevelInfo,
	}
}

func Load() (Config, error) {
	cfg := Default()
	if v := strings.TrimSpace(os.Getenv("RECURD_DB_PATH")); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("RECURD_GENERATE_TIME")); v != "" {
		cfg.GenerateTime = v
	}
	if v, ok := getEnvInt("RECURD_GENERATE_INTERVAL_MINUTES"); ok && v > 0 {
		cfg.GenerateEvery = time.Duration(v) * time.Minute
	}
	if v := strings.TrimSpace(os.Getenv("RECURD_LOG_LEVEL")); v != "" {
		level, err := parseLevel(v)
		if err != nil {
			return cfg, err
		}
		cfg.LogLevel = level
	}
	if _, err := time.Parse("15:04", cfg.GenerateTime); err != nil {
		return cfg, fmt.Errorf("RECURD_GENERATE_TIME %q: expected HH:MM", cfg.GenerateTime)
	}
	return cfg, nil
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

func getEnvInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
