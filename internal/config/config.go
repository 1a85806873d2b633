package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/stockmatch/internal/domain"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config holds all runtime configuration for the matching service.
type Config struct {
	Port               int
	LogLevel           string
	Storage            string
	DatabasePath       string
	AutoMatch          bool
	MatchSchedule      string // empty disables the periodic sweep
	MatchConcurrency   int
	FeeRate            domain.Percentage
	CORSAllowedOrigins []string
	VWAPWindow         time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. A .env file in the working directory, when present,
// is loaded first; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", port)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	storage := getStr("STORAGE", StorageMemory)
	if storage != StorageMemory && storage != StorageSQLite {
		return nil, fmt.Errorf("invalid STORAGE: %q, must be one of: memory, sqlite", storage)
	}

	autoMatch, err := getBool("AUTO_MATCH", true)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_MATCH: %w", err)
	}

	schedule := "@every 10s"
	if v, ok := os.LookupEnv("MATCH_SCHEDULE"); ok {
		schedule = strings.TrimSpace(v)
	}

	concurrency, err := getInt("MATCH_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid MATCH_CONCURRENCY: %w", err)
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("invalid MATCH_CONCURRENCY: %d, must be at least 1", concurrency)
	}

	feeRate, err := domain.ParsePercent(getStr("FEE_RATE", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEE_RATE: %w", err)
	}
	if feeRate.ToDecimal().IsNegative() || feeRate.ToPercent().GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("invalid FEE_RATE: %s, must be in [0, 100)", feeRate)
	}

	durations := make(map[string]time.Duration, len(durationDefaults))
	for _, d := range durationDefaults {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s: %s, must be positive", d.key, v)
		}
		durations[d.key] = v
	}

	return &Config{
		Port:               port,
		LogLevel:           logLevel,
		Storage:            storage,
		DatabasePath:       getStr("DATABASE_PATH", "./data/stockmatch.db"),
		AutoMatch:          autoMatch,
		MatchSchedule:      schedule,
		MatchConcurrency:   concurrency,
		FeeRate:            feeRate,
		CORSAllowedOrigins: splitList(getStr("CORS_ALLOWED_ORIGINS", "*")),
		VWAPWindow:         durations["VWAP_WINDOW"],
		ReadTimeout:        durations["READ_TIMEOUT"],
		WriteTimeout:       durations["WRITE_TIMEOUT"],
		IdleTimeout:        durations["IDLE_TIMEOUT"],
		ShutdownTimeout:    durations["SHUTDOWN_TIMEOUT"],
	}, nil
}

// durationDefaults lists every duration key with its default.
var durationDefaults = []struct {
	key string
	def time.Duration
}{
	{"VWAP_WINDOW", 5 * time.Minute},
	{"READ_TIMEOUT", 5 * time.Second},
	{"WRITE_TIMEOUT", 10 * time.Second},
	{"IDLE_TIMEOUT", 60 * time.Second},
	{"SHUTDOWN_TIMEOUT", 10 * time.Second},
}

// SlogLevel converts LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
