// Package config provides configuration types and loading for bridgeclaw.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Queue    QueueConfig    `json:"queue"`
	Channels ChannelsConfig `json:"channels"`
	Events   EventsConfig   `json:"events"`
	Agent    AgentConfig    `json:"agent"`
}

// PathsConfig groups filesystem path settings. The IPC queue root is
// <dataDir>/ipc and the registry database <dataDir>/registry.db.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"BRIDGECLAW_DATA_DIR"`
}

// QueueConfig contains IPC queue settings.
type QueueConfig struct {
	PollInterval time.Duration `json:"pollInterval" envconfig:"BRIDGECLAW_POLL_INTERVAL"`
	// QuarantineUnauthorized moves blocked messages to the errors lane
	// instead of deleting them.
	QuarantineUnauthorized bool `json:"quarantineUnauthorized" envconfig:"BRIDGECLAW_QUARANTINE_UNAUTHORIZED"`
}

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Slack    SlackConfig    `json:"slack"`
	Gmail    GmailConfig    `json:"gmail"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled bool   `json:"enabled" envconfig:"BRIDGECLAW_TELEGRAM_ENABLED"`
	Token   string `json:"token" envconfig:"BRIDGECLAW_TELEGRAM_TOKEN"`
}

// WhatsAppConfig configures the native WhatsApp channel.
type WhatsAppConfig struct {
	Enabled    bool   `json:"enabled" envconfig:"BRIDGECLAW_WHATSAPP_ENABLED"`
	SessionDir string `json:"sessionDir" envconfig:"BRIDGECLAW_WHATSAPP_SESSION_DIR"`
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"BRIDGECLAW_SLACK_ENABLED"`
	BotToken string `json:"botToken" envconfig:"BRIDGECLAW_SLACK_BOT_TOKEN"`
}

// GmailConfig configures the Gmail outbound bridge.
type GmailConfig struct {
	Enabled     bool   `json:"enabled" envconfig:"BRIDGECLAW_GMAIL_ENABLED"`
	BridgeURL   string `json:"bridgeUrl" envconfig:"BRIDGECLAW_GMAIL_BRIDGE_URL"`
	BridgeToken string `json:"bridgeToken" envconfig:"BRIDGECLAW_GMAIL_BRIDGE_TOKEN"`
}

// EventsConfig configures the optional Kafka outcome stream. Empty brokers
// disable it.
type EventsConfig struct {
	KafkaBrokers string `json:"kafkaBrokers" envconfig:"BRIDGECLAW_KAFKA_BROKERS"`
	Topic        string `json:"topic" envconfig:"BRIDGECLAW_EVENTS_TOPIC"`
}

// AgentConfig contains agent-boundary settings.
type AgentConfig struct {
	IdleTimeout time.Duration `json:"idleTimeout" envconfig:"BRIDGECLAW_IDLE_TIMEOUT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.bridgeclaw",
		},
		Queue: QueueConfig{
			PollInterval:           5 * time.Second,
			QuarantineUnauthorized: false,
		},
		Events: EventsConfig{
			Topic: "bridgeclaw.queue.events",
		},
		Agent: AgentConfig{
			IdleTimeout: 30 * time.Minute,
		},
	}
}
