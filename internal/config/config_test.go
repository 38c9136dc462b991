package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Queue.PollInterval != 5*time.Second {
		t.Errorf("default poll interval = %v", cfg.Queue.PollInterval)
	}
	if cfg.Queue.QuarantineUnauthorized {
		t.Error("unauthorized messages are deleted by default, not quarantined")
	}
	if cfg.Events.Topic == "" {
		t.Error("default events topic must be set")
	}
}

func TestLoadReadsFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"paths": {"dataDir": "` + dir + `"},
		"queue": {"pollInterval": 2000000000},
		"channels": {"telegram": {"enabled": true, "token": "from-file"}}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BRIDGECLAW_CONFIG", path)
	t.Setenv("BRIDGECLAW_TELEGRAM_TOKEN", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.PollInterval != 2*time.Second {
		t.Errorf("file value not applied: %v", cfg.Queue.PollInterval)
	}
	if !cfg.Channels.Telegram.Enabled {
		t.Error("file value not applied: telegram enabled")
	}
	if cfg.Channels.Telegram.Token != "from-env" {
		t.Errorf("env override not applied: %q", cfg.Channels.Telegram.Token)
	}
}

func TestEnvOverridesApplyToEveryNestedSection(t *testing.T) {
	t.Setenv("BRIDGECLAW_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("BRIDGECLAW_DATA_DIR", "/srv/bridgeclaw")
	t.Setenv("BRIDGECLAW_POLL_INTERVAL", "9s")
	t.Setenv("BRIDGECLAW_QUARANTINE_UNAUTHORIZED", "true")
	t.Setenv("BRIDGECLAW_SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("BRIDGECLAW_KAFKA_BROKERS", "broker:9092")
	t.Setenv("BRIDGECLAW_IDLE_TIMEOUT", "45m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.DataDir != "/srv/bridgeclaw" {
		t.Errorf("DataDir = %q", cfg.Paths.DataDir)
	}
	if cfg.Queue.PollInterval != 9*time.Second {
		t.Errorf("PollInterval = %v", cfg.Queue.PollInterval)
	}
	if !cfg.Queue.QuarantineUnauthorized {
		t.Error("QuarantineUnauthorized override not applied")
	}
	if cfg.Channels.Slack.BotToken != "xoxb-test" {
		t.Errorf("Slack token = %q", cfg.Channels.Slack.BotToken)
	}
	if cfg.Events.KafkaBrokers != "broker:9092" {
		t.Errorf("KafkaBrokers = %q", cfg.Events.KafkaBrokers)
	}
	if cfg.Agent.IdleTimeout != 45*time.Minute {
		t.Errorf("IdleTimeout = %v", cfg.Agent.IdleTimeout)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("BRIDGECLAW_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.PollInterval != 5*time.Second {
		t.Errorf("defaults not applied: %v", cfg.Queue.PollInterval)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.DataDir = "/var/lib/bridgeclaw"

	if got := cfg.QueueRoot(); got != "/var/lib/bridgeclaw/ipc" {
		t.Errorf("QueueRoot = %q", got)
	}
	if got := cfg.RegistryPath(); got != "/var/lib/bridgeclaw/registry.db" {
		t.Errorf("RegistryPath = %q", got)
	}
	if got := cfg.SnapshotPath(); got != "/var/lib/bridgeclaw/groups.json" {
		t.Errorf("SnapshotPath = %q", got)
	}
}
