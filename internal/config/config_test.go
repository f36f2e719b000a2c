package config

import (
	"strings"
	"testing"
)

const minimalYAML = `
webhook:
  verify_token: sekrit
whatsapp:
  access_token: tok
  phone_number_id: "42"
`

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Webhook.VerifyToken != "sekrit" {
		t.Errorf("verify token = %q", cfg.Webhook.VerifyToken)
	}
	if cfg.WhatsApp.PhoneNumberID != "42" {
		t.Errorf("phone number id = %q", cfg.WhatsApp.PhoneNumberID)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "leadline.db" {
		t.Errorf("dsn = %q, want leadline.db", cfg.Database.DSN)
	}
	if cfg.WhatsApp.APIBase != "https://graph.facebook.com" {
		t.Errorf("api base = %q", cfg.WhatsApp.APIBase)
	}
	if cfg.WhatsApp.Version != "v18.0" {
		t.Errorf("version = %q", cfg.WhatsApp.Version)
	}
	if cfg.Digest.Schedule != "0 9 * * *" {
		t.Errorf("digest schedule = %q", cfg.Digest.Schedule)
	}
}

func TestParse_MissingVerifyToken(t *testing.T) {
	_, err := Parse([]byte(`
whatsapp:
  access_token: tok
  phone_number_id: "42"
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "verify_token") {
		t.Errorf("error = %q, want mention of verify_token", err)
	}
}

func TestParse_MissingCredentials(t *testing.T) {
	_, err := Parse([]byte(`
webhook:
  verify_token: sekrit
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"access_token", "phone_number_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, want mention of %s", err, want)
		}
	}
}

func TestParse_UnsupportedDriver(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + `
database:
  driver: oracle
  dsn: whatever
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_MySQLRequiresDSN(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + `
database:
  driver: mysql
`))
	if err == nil {
		t.Fatal("expected validation error for mysql without dsn")
	}
	if !strings.Contains(err.Error(), "dsn") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("VERIFY_TOKEN", "from-env")
	t.Setenv("ACCESS_TOKEN", "env-tok")
	t.Setenv("PHONE_NUMBER_ID", "99")
	t.Setenv("DATABASE_URL", "env.db")

	cfg, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Webhook.VerifyToken != "from-env" {
		t.Errorf("verify token = %q", cfg.Webhook.VerifyToken)
	}
	if cfg.WhatsApp.AccessToken != "env-tok" {
		t.Errorf("access token = %q", cfg.WhatsApp.AccessToken)
	}
	if cfg.Database.DSN != "env.db" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
}

func TestParse_EnvWinsOverFile(t *testing.T) {
	t.Setenv("VERIFY_TOKEN", "env-wins")
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Webhook.VerifyToken != "env-wins" {
		t.Errorf("verify token = %q, want env-wins", cfg.Webhook.VerifyToken)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	t.Setenv("VERIFY_TOKEN", "x")
	_, err := Parse([]byte("webhook: ["))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/leadline.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnabledHelpers(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
notify:
  slack:
    bot_token: xoxb-1
    channel_id: C1
events:
  url: amqp://localhost
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.SlackEnabled() {
		t.Error("SlackEnabled = false, want true")
	}
	if cfg.DiscordEnabled() {
		t.Error("DiscordEnabled = true, want false")
	}
	if !cfg.EventsEnabled() {
		t.Error("EventsEnabled = false, want true")
	}
}
