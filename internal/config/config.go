package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	Addr           string
	AllowedOrigins []string

	RoomCooldown  time.Duration
	RatingDelta   int
	DefaultRating int
	ValidateMoves bool

	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration

	PuzzlesFile string
	MessagesDir string

	RedisURL           string
	DatabaseURL        string
	ResultWebhookURL   string
	ResultWebhookToken string
	ArchiveBuffer      int

	Log LogConfig
}

// LogConfig mirrors the LOG_* variables understood by obslog.
type LogConfig struct {
	Level   string
	Format  string
	Console bool
	ToFile  bool
	File    string
	Caller  bool
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Addr:          ":8080",
		RoomCooldown:  5 * time.Second,
		RatingDelta:   10,
		DefaultRating: 1500,
		SendBuffer:    64,
		PingInterval:  30 * time.Second,
		WriteTimeout:  5 * time.Second,
		ArchiveBuffer: 256,
		Log: LogConfig{
			Level:   "info",
			Format:  "legacy",
			Console: true,
			File:    "logs/arena.log",
		},
	}

	if v := env("ARENA_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.AllowedOrigins = splitList(env("ALLOWED_ORIGINS"))

	cfg.RoomCooldown = durationOr("ROOM_COOLDOWN", cfg.RoomCooldown)
	cfg.RatingDelta = intOr("RATING_DELTA", cfg.RatingDelta)
	cfg.DefaultRating = intOr("DEFAULT_RATING", cfg.DefaultRating)
	cfg.ValidateMoves = boolOr("VALIDATE_MOVES", cfg.ValidateMoves)

	cfg.SendBuffer = intOr("SEND_BUFFER", cfg.SendBuffer)
	cfg.PingInterval = durationOr("PING_INTERVAL", cfg.PingInterval)
	cfg.WriteTimeout = durationOr("WRITE_TIMEOUT", cfg.WriteTimeout)

	cfg.PuzzlesFile = env("PUZZLES_FILE")
	cfg.MessagesDir = env("MESSAGES_DIR")

	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.ResultWebhookURL = env("RESULT_WEBHOOK_URL")
	cfg.ResultWebhookToken = env("RESULT_WEBHOOK_TOKEN")
	cfg.ArchiveBuffer = intOr("ARCHIVE_BUFFER", cfg.ArchiveBuffer)

	if v := env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.ToLower(env("LOG_FORMAT")); v != "" {
		cfg.Log.Format = v
	}
	cfg.Log.Console = boolOr("LOG_TO_CONSOLE", cfg.Log.Console)
	cfg.Log.ToFile = boolOr("LOG_TO_FILE", cfg.Log.ToFile)
	if v := env("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	cfg.Log.Caller = boolOr("LOG_CALLER", cfg.Log.Caller)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("ARENA_ADDR is required"))
	}
	if c.RoomCooldown <= 0 {
		errs = append(errs, fmt.Errorf("ROOM_COOLDOWN must be positive, got %s", c.RoomCooldown))
	}
	if c.RatingDelta <= 0 {
		errs = append(errs, fmt.Errorf("RATING_DELTA must be positive, got %d", c.RatingDelta))
	}
	if c.DefaultRating <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_RATING must be positive, got %d", c.DefaultRating))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer))
	}
	if c.PingInterval <= 0 || c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("PING_INTERVAL and WRITE_TIMEOUT must be positive"))
	}
	if c.ArchiveBuffer <= 0 {
		errs = append(errs, fmt.Errorf("ARCHIVE_BUFFER must be positive, got %d", c.ArchiveBuffer))
	}
	switch c.Log.Format {
	case "legacy", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be legacy, json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ArchiveEnabled reports whether any result sink is configured.
func (c *AppConfig) ArchiveEnabled() bool {
	return c.RedisURL != "" || c.DatabaseURL != "" || c.ResultWebhookURL != ""
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func intOr(k string, def int) int {
	if v := env(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolOr(k string, def bool) bool {
	if v := env(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// durationOr accepts Go durations ("5s") or plain seconds ("5").
func durationOr(k string, def time.Duration) time.Duration {
	v := env(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
