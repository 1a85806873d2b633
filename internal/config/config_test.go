package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Storage != StorageMemory {
		t.Errorf("Storage = %q, want %q", cfg.Storage, StorageMemory)
	}
	if cfg.DatabasePath != "./data/stockmatch.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if !cfg.AutoMatch {
		t.Error("AutoMatch = false, want true")
	}
	if cfg.MatchSchedule != "@every 10s" {
		t.Errorf("MatchSchedule = %q, want %q", cfg.MatchSchedule, "@every 10s")
	}
	if cfg.MatchConcurrency != 4 {
		t.Errorf("MatchConcurrency = %d, want 4", cfg.MatchConcurrency)
	}
	if !cfg.FeeRate.IsZero() {
		t.Errorf("FeeRate = %s, want 0%%", cfg.FeeRate)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("CORSAllowedOrigins = %v, want [*]", cfg.CORSAllowedOrigins)
	}
	if cfg.VWAPWindow != 5*time.Minute {
		t.Errorf("VWAPWindow = %v, want 5m", cfg.VWAPWindow)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", cfg.IdleTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE", "sqlite")
	t.Setenv("DATABASE_PATH", "/tmp/x.db")
	t.Setenv("AUTO_MATCH", "false")
	t.Setenv("MATCH_SCHEDULE", "")
	t.Setenv("MATCH_CONCURRENCY", "8")
	t.Setenv("FEE_RATE", "0.25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("VWAP_WINDOW", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 || cfg.LogLevel != "debug" {
		t.Errorf("Port/LogLevel = %d/%q", cfg.Port, cfg.LogLevel)
	}
	if cfg.Storage != StorageSQLite || cfg.DatabasePath != "/tmp/x.db" {
		t.Errorf("Storage/DatabasePath = %q/%q", cfg.Storage, cfg.DatabasePath)
	}
	if cfg.AutoMatch {
		t.Error("AutoMatch = true, want false")
	}
	if cfg.MatchSchedule != "" {
		t.Errorf("MatchSchedule = %q, want empty", cfg.MatchSchedule)
	}
	if cfg.MatchConcurrency != 8 {
		t.Errorf("MatchConcurrency = %d, want 8", cfg.MatchConcurrency)
	}
	if cfg.FeeRate.ToDecimal().String() != "0.0025" {
		t.Errorf("FeeRate fraction = %s, want 0.0025", cfg.FeeRate.ToDecimal())
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://b.test" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.VWAPWindow != 10*time.Minute {
		t.Errorf("VWAPWindow = %v, want 10m", cfg.VWAPWindow)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "not-a-number"},
		{"PORT", "70000"},
		{"LOG_LEVEL", "verbose"},
		{"STORAGE", "postgres"},
		{"AUTO_MATCH", "maybe"},
		{"MATCH_CONCURRENCY", "0"},
		{"FEE_RATE", "abc"},
		{"FEE_RATE", "-1"},
		{"FEE_RATE", "100"},
		{"READ_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	for _, key := range durationEnvKeys {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, "not-a-duration")

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for invalid %s", key)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=7070\nLOG_LEVEL=warn\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070 from .env", cfg.Port)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want the environment to win over .env", cfg.LogLevel)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for level, want := range tests {
		cfg := &Config{LogLevel: level}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", level, got, want)
		}
	}
}
