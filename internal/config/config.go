// Package config loads the bot configuration from a YAML file.
//
// The file is decoded strictly (unknown keys are rejected) so typos surface
// at startup instead of silently disabling features. Durations are Go
// duration strings ("10s", "1m"). The bot token may be supplied through the
// BOT_TOKEN environment variable instead of the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Admins    AdminsConfig    `yaml:"admins"`
	Resources []ResourceLink  `yaml:"resources,omitempty"`
	Storage   StorageConfig   `yaml:"storage"`
	Broadcast BroadcastConfig `yaml:"broadcast,omitempty"`
	Digest    DigestConfig    `yaml:"digest,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

type TelegramConfig struct {
	// Token may be empty in the file; BOT_TOKEN then takes over.
	Token       string `yaml:"token,omitempty"`
	PollTimeout string `yaml:"poll_timeout,omitempty"`
}

type AdminsConfig struct {
	// Roots is the fixed root-admin set; immutable at runtime.
	Roots []int64 `yaml:"roots"`
	// ReviewChatID is where new application cards are posted.
	ReviewChatID int64 `yaml:"review_chat_id"`
}

// ResourceLink is one entry of the member "Resources" keyboard.
type ResourceLink struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

type StorageConfig struct {
	Path        string `yaml:"path,omitempty"`
	BusyTimeout string `yaml:"busy_timeout,omitempty"`
}

type BroadcastConfig struct {
	// RatePerSec paces delivery and reversal attempts. Default 20 (50ms gap),
	// comfortably under Telegram's ~30 msg/s bot limit.
	RatePerSec float64 `yaml:"rate_per_sec,omitempty"`
}

// DigestConfig controls the daily membership stats digest posted to the
// review chat. Spec is a cron expression; disabled when the section is off.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Spec    string `yaml:"spec,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Load reads, strictly decodes, and validates the config at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		cfg.Telegram.Token = os.Getenv("BOT_TOKEN")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram token is not set (config telegram.token or BOT_TOKEN)")
	}
	if len(c.Admins.Roots) == 0 {
		return errors.New("admins.roots must list at least one root admin id")
	}
	if c.Admins.ReviewChatID == 0 {
		return errors.New("admins.review_chat_id is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = "./teambot.db"
	}
	if c.Digest.Enabled && strings.TrimSpace(c.Digest.Spec) == "" {
		return errors.New("digest.spec is required when digest is enabled")
	}
	for i, r := range c.Resources {
		if strings.TrimSpace(r.Label) == "" || strings.TrimSpace(r.URL) == "" {
			return fmt.Errorf("resources[%d]: label and url are both required", i)
		}
	}
	return nil
}

// ParseDuration parses a Go duration string, falling back to def when the
// value is empty or malformed.
func ParseDuration(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Rate returns the configured broadcast pacing rate with its default applied.
func (c *Config) Rate() float64 {
	if c.Broadcast.RatePerSec <= 0 {
		return 20
	}
	return c.Broadcast.RatePerSec
}
