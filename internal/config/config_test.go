package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidelinehq/dupguard/internal/dedup"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Telegram.PollTimeout != DefaultPollTimeout {
		t.Errorf("pollTimeout = %d, want %d", cfg.Telegram.PollTimeout, DefaultPollTimeout)
	}
	if cfg.Dedup.PerConversationLimit != dedup.DefaultCapacity {
		t.Errorf("perConversationLimit = %d, want %d", cfg.Dedup.PerConversationLimit, dedup.DefaultCapacity)
	}
	if cfg.Dedup.FailureThreshold != dedup.DefaultFailureThreshold {
		t.Errorf("failureThreshold = %d, want %d", cfg.Dedup.FailureThreshold, dedup.DefaultFailureThreshold)
	}
	if cfg.Dedup.Retention != "" {
		t.Errorf("retention = %q, want empty (infinite)", cfg.Dedup.Retention)
	}
	if cfg.Dedup.SweepInterval != DefaultSweepInterval {
		t.Errorf("sweepInterval = %q, want %q", cfg.Dedup.SweepInterval, DefaultSweepInterval)
	}
	if !cfg.Web.Enabled {
		t.Error("web should be enabled by default")
	}
	if cfg.Web.Host != DefaultHost {
		t.Errorf("host = %q, want %q", cfg.Web.Host, DefaultHost)
	}
	if cfg.Web.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Web.Port, DefaultPort)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	// Override config dir to a temp location
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	// Clear any env overrides
	t.Setenv("DUPGUARD_TELEGRAM_TOKEN", "")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DUPGUARD_WEB_PORT", "")
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Telegram.Token != "" {
		t.Errorf("token = %q, want empty", cfg.Telegram.Token)
	}
	if cfg.Web.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Web.Port, DefaultPort)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	t.Setenv("DUPGUARD_TELEGRAM_TOKEN", "")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DUPGUARD_WEB_PORT", "")
	t.Setenv("PORT", "")
	t.Setenv("DUPGUARD_RETENTION", "")
	t.Setenv("DUPGUARD_CHAT_LIMIT", "")

	// Create config file
	cfgDir := filepath.Join(tmpDir, ".dupguard")
	os.MkdirAll(cfgDir, 0755)

	testCfg := map[string]any{
		"telegram": map[string]any{
			"token": "123456:file-token",
		},
		"dedup": map[string]any{
			"perConversationLimit": 500,
			"retention":            "72h",
		},
		"web": map[string]any{
			"enabled": false,
		},
	}
	data, _ := json.MarshalIndent(testCfg, "", "  ")
	os.WriteFile(filepath.Join(cfgDir, "config.json"), data, 0644)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Telegram.Token != "123456:file-token" {
		t.Errorf("token = %q, want 123456:file-token", cfg.Telegram.Token)
	}
	if cfg.Dedup.PerConversationLimit != 500 {
		t.Errorf("perConversationLimit = %d, want 500", cfg.Dedup.PerConversationLimit)
	}
	if cfg.Dedup.Retention != "72h" {
		t.Errorf("retention = %q, want 72h", cfg.Dedup.Retention)
	}
	if cfg.Web.Enabled {
		t.Error("web should be disabled by the file")
	}
}

func TestLoadConfig_TokenEnvPriority(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	// DUPGUARD_TELEGRAM_TOKEN takes priority over BOT_TOKEN
	t.Setenv("DUPGUARD_TELEGRAM_TOKEN", "dupguard-wins")
	t.Setenv("BOT_TOKEN", "bot-token-loses")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Telegram.Token != "dupguard-wins" {
		t.Errorf("token = %q, want dupguard-wins", cfg.Telegram.Token)
	}
}

func TestLoadConfig_BotTokenFallback(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	t.Setenv("DUPGUARD_TELEGRAM_TOKEN", "")
	t.Setenv("BOT_TOKEN", "123456:bot-token")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Telegram.Token != "123456:bot-token" {
		t.Errorf("token = %q, want 123456:bot-token", cfg.Telegram.Token)
	}
}

func TestLoadConfig_PortEnv(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	t.Setenv("DUPGUARD_WEB_PORT", "")
	t.Setenv("PORT", "8080")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Web.Port)
	}

	// DUPGUARD_WEB_PORT takes priority over PORT
	t.Setenv("DUPGUARD_WEB_PORT", "9090")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Web.Port)
	}
}

func TestLoadConfig_DedupEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	t.Setenv("DUPGUARD_RETENTION", "48h")
	t.Setenv("DUPGUARD_SWEEP_INTERVAL", "30m")
	t.Setenv("DUPGUARD_CHAT_LIMIT", "2000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Dedup.Retention != "48h" {
		t.Errorf("retention = %q, want 48h", cfg.Dedup.Retention)
	}
	if cfg.Dedup.SweepInterval != "30m" {
		t.Errorf("sweepInterval = %q, want 30m", cfg.Dedup.SweepInterval)
	}
	if cfg.Dedup.PerConversationLimit != 2000 {
		t.Errorf("perConversationLimit = %d, want 2000", cfg.Dedup.PerConversationLimit)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	cfgDir := filepath.Join(tmpDir, ".dupguard")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("invalid json"), 0644)

	_, err := LoadConfig()
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadConfig_NormalizesZeroValues(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	t.Setenv("DUPGUARD_CHAT_LIMIT", "")
	t.Setenv("DUPGUARD_SWEEP_INTERVAL", "")
	t.Setenv("DUPGUARD_WEB_PORT", "")
	t.Setenv("PORT", "")

	cfgDir := filepath.Join(tmpDir, ".dupguard")
	os.MkdirAll(cfgDir, 0755)

	// Zero values in the file fall back to defaults
	testCfg := map[string]any{
		"telegram": map[string]any{"pollTimeout": 0},
		"dedup": map[string]any{
			"perConversationLimit": 0,
			"sweepInterval":        "",
			"failureThreshold":     0,
		},
		"web": map[string]any{"enabled": true, "host": "", "port": 0},
	}
	data, _ := json.MarshalIndent(testCfg, "", "  ")
	os.WriteFile(filepath.Join(cfgDir, "config.json"), data, 0644)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Telegram.PollTimeout != DefaultPollTimeout {
		t.Errorf("pollTimeout = %d, want %d", cfg.Telegram.PollTimeout, DefaultPollTimeout)
	}
	if cfg.Dedup.PerConversationLimit != dedup.DefaultCapacity {
		t.Errorf("perConversationLimit = %d, want %d", cfg.Dedup.PerConversationLimit, dedup.DefaultCapacity)
	}
	if cfg.Dedup.SweepInterval != DefaultSweepInterval {
		t.Errorf("sweepInterval = %q, want %q", cfg.Dedup.SweepInterval, DefaultSweepInterval)
	}
	if cfg.Dedup.FailureThreshold != dedup.DefaultFailureThreshold {
		t.Errorf("failureThreshold = %d, want %d", cfg.Dedup.FailureThreshold, dedup.DefaultFailureThreshold)
	}
	if cfg.Web.Host != DefaultHost {
		t.Errorf("host = %q, want %q", cfg.Web.Host, DefaultHost)
	}
	if cfg.Web.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Web.Port, DefaultPort)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	t.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	cfg := DefaultConfig()
	cfg.Telegram.Token = "123456:saved-token"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, ".dupguard", "config.json"))
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal saved config: %v", err)
	}
	if loaded.Telegram.Token != "123456:saved-token" {
		t.Errorf("saved token = %q, want 123456:saved-token", loaded.Telegram.Token)
	}
}

func TestRetentionDuration(t *testing.T) {
	tests := []struct {
		retention string
		want      time.Duration
		wantErr   bool
	}{
		{"", 0, false},
		{"72h", 72 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"-1h", 0, true},
		{"one week", 0, true},
	}

	for _, tt := range tests {
		d := DedupConfig{Retention: tt.retention}
		got, err := d.RetentionDuration()
		if tt.wantErr {
			if err == nil {
				t.Errorf("RetentionDuration(%q) expected error", tt.retention)
			}
			continue
		}
		if err != nil {
			t.Errorf("RetentionDuration(%q) error: %v", tt.retention, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RetentionDuration(%q) = %v, want %v", tt.retention, got, tt.want)
		}
	}
}

func TestSweepIntervalDuration(t *testing.T) {
	d := DedupConfig{}
	got, err := d.SweepIntervalDuration()
	if err != nil {
		t.Fatalf("SweepIntervalDuration error: %v", err)
	}
	if got != 6*time.Hour {
		t.Errorf("default sweep interval = %v, want 6h", got)
	}

	d = DedupConfig{SweepInterval: "15m"}
	got, err = d.SweepIntervalDuration()
	if err != nil {
		t.Fatalf("SweepIntervalDuration error: %v", err)
	}
	if got != 15*time.Minute {
		t.Errorf("sweep interval = %v, want 15m", got)
	}

	d = DedupConfig{SweepInterval: "0s"}
	if _, err := d.SweepIntervalDuration(); err == nil {
		t.Error("expected error for zero sweep interval")
	}
}
