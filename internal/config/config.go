package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tidelinehq/dupguard/internal/dedup"
)

const (
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 5000
	DefaultBufSize       = 100
	DefaultSweepInterval = "6h"
	DefaultPollTimeout   = 30
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Dedup    DedupConfig    `json:"dedup"`
	Web      WebConfig      `json:"web"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	Proxy       string `json:"proxy,omitempty"`
	PollTimeout int    `json:"pollTimeout"`
}

type DedupConfig struct {
	PerConversationLimit int `json:"perConversationLimit"`
	// Retention is a Go duration string; empty means entries never expire.
	Retention        string `json:"retention,omitempty"`
	SweepInterval    string `json:"sweepInterval"`
	FailureThreshold int    `json:"failureThreshold"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// RetentionDuration parses the retention window. Empty means infinite.
func (d DedupConfig) RetentionDuration() (time.Duration, error) {
	if d.Retention == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(d.Retention)
	if err != nil {
		return 0, fmt.Errorf("parse retention %q: %w", d.Retention, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("retention %q is negative", d.Retention)
	}
	return parsed, nil
}

// SweepIntervalDuration parses the sweep cadence.
func (d DedupConfig) SweepIntervalDuration() (time.Duration, error) {
	spec := d.SweepInterval
	if spec == "" {
		spec = DefaultSweepInterval
	}
	parsed, err := time.ParseDuration(spec)
	if err != nil {
		return 0, fmt.Errorf("parse sweep interval %q: %w", spec, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("sweep interval %q must be positive", spec)
	}
	return parsed, nil
}

func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: DefaultPollTimeout,
		},
		Dedup: DedupConfig{
			PerConversationLimit: dedup.DefaultCapacity,
			SweepInterval:        DefaultSweepInterval,
			FailureThreshold:     dedup.DefaultFailureThreshold,
		},
		Web: WebConfig{
			Enabled: true,
			Host:    DefaultHost,
			Port:    DefaultPort,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".dupguard")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if token := os.Getenv("DUPGUARD_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if token := os.Getenv("BOT_TOKEN"); token != "" && cfg.Telegram.Token == "" {
		cfg.Telegram.Token = token
	}
	if proxy := os.Getenv("DUPGUARD_PROXY"); proxy != "" {
		cfg.Telegram.Proxy = proxy
	}
	if port := os.Getenv("DUPGUARD_WEB_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Web.Port = parsed
		}
	}
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DUPGUARD_WEB_PORT") == "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Web.Port = parsed
		}
	}
	if retention := os.Getenv("DUPGUARD_RETENTION"); retention != "" {
		cfg.Dedup.Retention = retention
	}
	if interval := os.Getenv("DUPGUARD_SWEEP_INTERVAL"); interval != "" {
		cfg.Dedup.SweepInterval = interval
	}
	if limit := os.Getenv("DUPGUARD_CHAT_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			cfg.Dedup.PerConversationLimit = parsed
		}
	}

	if cfg.Telegram.PollTimeout <= 0 {
		cfg.Telegram.PollTimeout = DefaultPollTimeout
	}
	if cfg.Dedup.PerConversationLimit <= 0 {
		cfg.Dedup.PerConversationLimit = dedup.DefaultCapacity
	}
	if cfg.Dedup.FailureThreshold <= 0 {
		cfg.Dedup.FailureThreshold = dedup.DefaultFailureThreshold
	}
	if cfg.Dedup.SweepInterval == "" {
		cfg.Dedup.SweepInterval = DefaultSweepInterval
	}
	if cfg.Web.Host == "" {
		cfg.Web.Host = DefaultHost
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = DefaultPort
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
