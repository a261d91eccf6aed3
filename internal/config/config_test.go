package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return cfgPath
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"MONGODB_URI", "SENDGRID_API_KEY", "DEFAULT_FROM_EMAIL", "PARTNER_WEBSITE_URL", "AWS_REGION"} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	content := `
storage:
  backend: bolt
  path: "/tmp/test.db"

transport:
  type: sandbox
  sandbox:
    path: "/tmp/sandbox.db"

message:
  from: "sales@example.com"
  subject: "Hello {{.Contact.FirstName}}"
  vars:
    partner_website_url: "https://partner.example.com"

qualification:
  cooldown: 0s

dispatch:
  policy: known_business_only
  cooldown: 168h
  cooldown_scope: domain
  rate_per_second: 5

logging:
  level: "debug"
  format: "text"
  redact_recipients: false
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Path != "/tmp/test.db" {
		t.Errorf("Storage.Path = %v, want /tmp/test.db", cfg.Storage.Path)
	}
	if cfg.Transport.Type != TransportSandbox {
		t.Errorf("Transport.Type = %v, want sandbox", cfg.Transport.Type)
	}
	if cfg.Message.Vars["partner_website_url"] != "https://partner.example.com" {
		t.Errorf("Vars = %v", cfg.Message.Vars)
	}
	if cfg.QualificationCooldown() != 0 {
		t.Errorf("QualificationCooldown() = %v, want 0", cfg.QualificationCooldown())
	}
	if cfg.DispatchCooldown() != 168*time.Hour {
		t.Errorf("DispatchCooldown() = %v, want 168h", cfg.DispatchCooldown())
	}
	if cfg.Dispatch.CooldownScope != ScopeDomain {
		t.Errorf("CooldownScope = %v, want domain", cfg.Dispatch.CooldownScope)
	}
	if cfg.Dispatch.RatePerSecond != 5 {
		t.Errorf("RatePerSecond = %v, want 5", cfg.Dispatch.RatePerSecond)
	}
	if cfg.RedactRecipients() {
		t.Error("RedactRecipients() = true, want false")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %v, want debug", cfg.Logging.Level)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	content := `
transport:
  sendgrid:
    api_key: "SG.test"
message:
  from: "sales@example.com"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Backend != BackendBolt {
		t.Errorf("Storage.Backend = %v, want bolt", cfg.Storage.Backend)
	}
	if cfg.Transport.Type != TransportSendGrid {
		t.Errorf("Transport.Type = %v, want sendgrid", cfg.Transport.Type)
	}
	if cfg.Transport.SendGrid.BaseURL != "https://api.sendgrid.com" {
		t.Errorf("SendGrid.BaseURL = %v", cfg.Transport.SendGrid.BaseURL)
	}
	if cfg.QualificationCooldown() != DefaultCooldown {
		t.Errorf("QualificationCooldown() = %v, want %v", cfg.QualificationCooldown(), DefaultCooldown)
	}
	if cfg.DispatchCooldown() != DefaultCooldown {
		t.Errorf("DispatchCooldown() = %v, want %v", cfg.DispatchCooldown(), DefaultCooldown)
	}
	if cfg.Qualification.CustomerExclusion != ExclusionEmailOrDomain {
		t.Errorf("CustomerExclusion = %v, want email_or_domain", cfg.Qualification.CustomerExclusion)
	}
	if cfg.Dispatch.Policy != PolicyExcludeCustomers {
		t.Errorf("Dispatch.Policy = %v, want exclude_customers", cfg.Dispatch.Policy)
	}
	if cfg.Dispatch.CooldownScope != ScopeContact {
		t.Errorf("CooldownScope = %v, want contact", cfg.Dispatch.CooldownScope)
	}
	if cfg.Suppression.Source != TransportSendGrid {
		t.Errorf("Suppression.Source = %v, want sendgrid", cfg.Suppression.Source)
	}
	if !cfg.RedactRecipients() {
		t.Error("RedactRecipients() = false, want true")
	}
	if cfg.Message.HTML == "" || cfg.Message.Text == "" {
		t.Error("default message bodies not set")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %v, want json", cfg.Logging.Format)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %v, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("SENDGRID_API_KEY", "SG.env")
	t.Setenv("DEFAULT_FROM_EMAIL", "env@example.com")
	t.Setenv("PARTNER_WEBSITE_URL", "https://env.example.com")

	cfg, err := Load(writeConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Backend != BackendMongo {
		t.Errorf("Storage.Backend = %v, want mongo", cfg.Storage.Backend)
	}
	if cfg.Storage.Mongo.Database != "email_campaigns" {
		t.Errorf("Mongo.Database = %v, want email_campaigns", cfg.Storage.Mongo.Database)
	}
	if cfg.Transport.SendGrid.APIKey != "SG.env" {
		t.Errorf("SendGrid.APIKey = %v, want SG.env", cfg.Transport.SendGrid.APIKey)
	}
	if cfg.Message.From != "env@example.com" {
		t.Errorf("Message.From = %v, want env@example.com", cfg.Message.From)
	}
	if cfg.Message.Vars["partner_website_url"] != "https://env.example.com" {
		t.Errorf("partner_website_url = %v", cfg.Message.Vars["partner_website_url"])
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	base := `
message:
  from: "sales@example.com"
transport:
  type: sandbox
`
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"valid", "", ""},
		{"bad backend", "storage:\n  backend: redis\n", "storage.backend"},
		{"mongo without uri", "storage:\n  backend: mongo\n", "storage.mongo.uri"},
		{"bad exclusion", "qualification:\n  customer_exclusion: everything\n", "customer_exclusion"},
		{"bad policy", "dispatch:\n  policy: everyone\n", "dispatch.policy"},
		{"bad scope", "dispatch:\n  cooldown_scope: planet\n", "cooldown_scope"},
		{"negative rate", "dispatch:\n  rate_per_second: -1\n", "rate_per_second"},
		{"register with exclusion policy", "qualification:\n  register_business_domains: true\n", "register_business_domains"},
		{"bad level", "logging:\n  level: trace\n", "logging.level"},
		{"bad source", "suppression:\n  source: mailchimp\n", "suppression.source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, base+tt.extra))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Load() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Load() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTransport(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TransportConfig
		wantErr bool
	}{
		{"sendgrid without key", TransportConfig{Type: TransportSendGrid}, true},
		{"sendgrid", TransportConfig{Type: TransportSendGrid, SendGrid: SendGridConfig{APIKey: "k"}}, false},
		{"ses without region", TransportConfig{Type: TransportSES}, true},
		{"ses", TransportConfig{Type: TransportSES, SES: SESConfig{Region: "eu-west-1"}}, false},
		{"smtp without addr", TransportConfig{Type: TransportSMTP}, true},
		{"smtp dkim incomplete", TransportConfig{Type: TransportSMTP, SMTP: SMTPConfig{Addr: "relay:587", DKIM: DKIMConfig{Enabled: true}}}, true},
		{"smtp", TransportConfig{Type: TransportSMTP, SMTP: SMTPConfig{Addr: "relay:587"}}, false},
		{"sandbox error rate", TransportConfig{Type: TransportSandbox, Sandbox: SandboxConfig{Path: "/tmp/s.db", ErrorRate: 1.5}}, true},
		{"unknown", TransportConfig{Type: "pigeon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Transport: tt.cfg}
			err := c.validateTransport()
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTransport() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
