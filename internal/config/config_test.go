package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ARENA_ADDR", "ROOM_COOLDOWN", "RATING_DELTA", "VALIDATE_MOVES", "SEND_BUFFER", "LOG_FORMAT", "ALLOWED_ORIGINS", "REDIS_URL", "DATABASE_URL", "RESULT_WEBHOOK_URL"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.RoomCooldown != 5*time.Second || cfg.RatingDelta != 10 || cfg.DefaultRating != 1500 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.ValidateMoves || cfg.ArchiveEnabled() {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ARENA_ADDR", "127.0.0.1:9000")
	t.Setenv("ROOM_COOLDOWN", "3")
	t.Setenv("PING_INTERVAL", "250ms")
	t.Setenv("VALIDATE_MOVES", "true")
	t.Setenv("RATING_DELTA", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " a.example , ,b.example")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" || cfg.RoomCooldown != 3*time.Second || cfg.PingInterval != 250*time.Millisecond {
		t.Fatalf("overrides: %+v", cfg)
	}
	if !cfg.ValidateMoves || cfg.RatingDelta != 10 {
		t.Fatalf("bool/int parsing: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "b.example" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if !cfg.ArchiveEnabled() {
		t.Fatalf("archive should be enabled")
	}
}

func TestValidateRejectsNonPositive(t *testing.T) {
	t.Setenv("SEND_BUFFER", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for SEND_BUFFER=0")
	}
	t.Setenv("SEND_BUFFER", "")
	t.Setenv("RATING_DELTA", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for RATING_DELTA=0")
	}
	t.Setenv("RATING_DELTA", "")
	t.Setenv("LOG_FORMAT", "xml")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for LOG_FORMAT=xml")
	}
}
