package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.MaxUsernameLength != 20 {
		t.Errorf("MaxUsernameLength = %d, want 20", cfg.MaxUsernameLength)
	}
	if cfg.PageLimit != 20 || cfg.MaxPageLimit != 100 {
		t.Errorf("page limits = %d/%d, want 20/100", cfg.PageLimit, cfg.MaxPageLimit)
	}
	if cfg.TypingTTL != 0 {
		t.Errorf("TypingTTL = %v, want 0", cfg.TypingTTL)
	}
	if !cfg.ArchiveEnabled {
		t.Error("ArchiveEnabled = false, want true")
	}
	rooms := cfg.Rooms()
	if len(rooms) != 1 || rooms[0] != (Room{ID: "general", Name: "General"}) {
		t.Errorf("Rooms() = %+v, want [general General]", rooms)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("STRICT_ROOMS", "true")
	t.Setenv("DEFAULT_ROOMS", "general:General, random ,dev:Developers")
	t.Setenv("TYPING_TTL", "5s")
	t.Setenv("RATE_LIMIT_WINDOW", "2s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Port != 8080 || !cfg.StrictRooms {
		t.Errorf("Port/StrictRooms = %d/%v", cfg.Port, cfg.StrictRooms)
	}
	if cfg.TypingTTL != 5*time.Second || cfg.RateLimitWindow != 2*time.Second {
		t.Errorf("durations = %v/%v", cfg.TypingTTL, cfg.RateLimitWindow)
	}
	want := []Room{{"general", "General"}, {"random", "random"}, {"dev", "Developers"}}
	got := cfg.Rooms()
	if len(got) != len(want) {
		t.Fatalf("Rooms() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Rooms()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"bad int", "PORT", "not-a-port", "parse env:"},
		{"port range", "PORT", "70000", "PORT"},
		{"page limit", "PAGE_LIMIT", "500", "PAGE_LIMIT"},
		{"negative ttl", "TYPING_TTL", "-1s", "TYPING_TTL"},
		{"rate events", "RATE_LIMIT_EVENTS", "0", "RATE_LIMIT"},
		{"log level", "LOG_LEVEL", "loud", "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
