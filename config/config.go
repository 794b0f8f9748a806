// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration.
type Config struct {
	Port int `env:"PORT" envDefault:"3000"`

	StrictRooms       bool          `env:"STRICT_ROOMS" envDefault:"false"`
	DefaultRooms      []string      `env:"DEFAULT_ROOMS" envDefault:"general:General" envSeparator:","`
	MaxUsernameLength int           `env:"MAX_USERNAME_LENGTH" envDefault:"20"`
	PageLimit         int           `env:"PAGE_LIMIT" envDefault:"20"`
	MaxPageLimit      int           `env:"MAX_PAGE_LIMIT" envDefault:"100"`
	TypingTTL         time.Duration `env:"TYPING_TTL" envDefault:"0s"`
	TypingSweep       time.Duration `env:"TYPING_SWEEP_INTERVAL" envDefault:"1s"`

	DBPath         string `env:"DB_PATH" envDefault:"chat.db"`
	DBDebug        bool   `env:"DB_DEBUG" envDefault:"false"`
	ArchiveEnabled bool   `env:"ARCHIVE_ENABLED" envDefault:"true"`

	RedisAddr       string        `env:"REDIS_ADDR"`
	RateLimitEvents int           `env:"RATE_LIMIT_EVENTS" envDefault:"20"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1s"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
}

// Room is a room seeded at startup.
type Room struct {
	ID   string
	Name string
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges env tags cannot express.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("PORT out of range: %d", c.Port)
	case c.MaxUsernameLength <= 0:
		return fmt.Errorf("MAX_USERNAME_LENGTH must be positive")
	case c.PageLimit <= 0 || c.MaxPageLimit <= 0 || c.PageLimit > c.MaxPageLimit:
		return fmt.Errorf("PAGE_LIMIT must be in 1..MAX_PAGE_LIMIT")
	case c.TypingTTL < 0:
		return fmt.Errorf("TYPING_TTL must not be negative")
	case c.TypingTTL > 0 && c.TypingSweep <= 0:
		return fmt.Errorf("TYPING_SWEEP_INTERVAL must be positive when TYPING_TTL is set")
	case c.RateLimitEvents <= 0 || c.RateLimitWindow <= 0:
		return fmt.Errorf("RATE_LIMIT_EVENTS and RATE_LIMIT_WINDOW must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Rooms parses DEFAULT_ROOMS entries of the form id or id:Name.
func (c *Config) Rooms() []Room {
	rooms := make([]Room, 0, len(c.DefaultRooms))
	for _, entry := range c.DefaultRooms {
		id, name, _ := strings.Cut(strings.TrimSpace(entry), ":")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = id
		}
		rooms = append(rooms, Room{ID: id, Name: name})
	}
	return rooms
}

// SlogLevel converts LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
