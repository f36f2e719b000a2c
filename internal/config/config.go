// Package config provides YAML-based configuration loading for Leadline.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Leadline configuration, loaded from leadline.yaml.
// Secrets may be supplied or overridden via environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Notify   NotifyConfig   `yaml:"notify"`
	Events   EventsConfig   `yaml:"events"`
	Digest   DigestConfig   `yaml:"digest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig holds storage settings. Driver is "sqlite" or "mysql".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"` // env: DATABASE_URL
}

// WebhookConfig holds inbound webhook settings.
type WebhookConfig struct {
	VerifyToken string `yaml:"verify_token"` // env: VERIFY_TOKEN
}

// WhatsAppConfig holds outbound provider credentials.
type WhatsAppConfig struct {
	APIBase       string `yaml:"api_base"`
	Version       string `yaml:"version"`
	AccessToken   string `yaml:"access_token"`    // env: ACCESS_TOKEN
	PhoneNumberID string `yaml:"phone_number_id"` // env: PHONE_NUMBER_ID
}

// NotifyConfig holds optional agent-notification settings. A platform is
// enabled when its token and channel are both set.
type NotifyConfig struct {
	Slack   SlackNotifyConfig   `yaml:"slack"`
	Discord DiscordNotifyConfig `yaml:"discord"`
}

// SlackNotifyConfig configures Slack notifications for new customers.
type SlackNotifyConfig struct {
	BotToken  string `yaml:"bot_token"` // env: SLACK_BOT_TOKEN
	ChannelID string `yaml:"channel_id"`
}

// DiscordNotifyConfig configures Discord notifications for new customers.
type DiscordNotifyConfig struct {
	BotToken  string `yaml:"bot_token"` // env: DISCORD_BOT_TOKEN
	ChannelID string `yaml:"channel_id"`
}

// EventsConfig holds optional AMQP event-mirror settings. Disabled when URL
// is empty.
type EventsConfig struct {
	URL      string `yaml:"url"` // env: AMQP_URL
	Exchange string `yaml:"exchange"`
}

// DigestConfig holds daily-digest settings.
type DigestConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // 5-field cron expression
}

// Load reads a YAML config file from path, applies environment overrides,
// and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays secrets from the process environment. Environment values
// win over file values so deployments never need credentials on disk.
func (c *Config) applyEnv() {
	overlay(&c.Webhook.VerifyToken, "VERIFY_TOKEN")
	overlay(&c.WhatsApp.AccessToken, "ACCESS_TOKEN")
	overlay(&c.WhatsApp.PhoneNumberID, "PHONE_NUMBER_ID")
	overlay(&c.Database.DSN, "DATABASE_URL")
	overlay(&c.Events.URL, "AMQP_URL")
	overlay(&c.Notify.Slack.BotToken, "SLACK_BOT_TOKEN")
	overlay(&c.Notify.Discord.BotToken, "DISCORD_BOT_TOKEN")
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "leadline.db"
	}
	if c.WhatsApp.APIBase == "" {
		c.WhatsApp.APIBase = "https://graph.facebook.com"
	}
	if c.WhatsApp.Version == "" {
		c.WhatsApp.Version = "v18.0"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "leadline.events"
	}
	if c.Digest.Schedule == "" {
		c.Digest.Schedule = "0 9 * * *"
	}
}

// validate checks that all required fields are present and consistent.
// Missing provider credentials are a startup failure, never a per-request one.
func (c *Config) validate() error {
	var errs []string
	if c.Webhook.VerifyToken == "" {
		errs = append(errs, "webhook.verify_token is required (or VERIFY_TOKEN)")
	}
	if c.WhatsApp.AccessToken == "" {
		errs = append(errs, "whatsapp.access_token is required (or ACCESS_TOKEN)")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		errs = append(errs, "whatsapp.phone_number_id is required (or PHONE_NUMBER_ID)")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required (or DATABASE_URL)")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SlackEnabled reports whether Slack notifications are configured.
func (c *Config) SlackEnabled() bool {
	return c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID != ""
}

// DiscordEnabled reports whether Discord notifications are configured.
func (c *Config) DiscordEnabled() bool {
	return c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID != ""
}

// EventsEnabled reports whether the AMQP event mirror is configured.
func (c *Config) EventsEnabled() bool {
	return c.Events.URL != ""
}
