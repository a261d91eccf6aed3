package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/foxzi/campaigner/internal/config"
	"github.com/foxzi/campaigner/internal/transport"
)

func newTestConfig(t *testing.T, extra string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	for _, key := range []string{"MONGODB_URI", "SENDGRID_API_KEY", "DEFAULT_FROM_EMAIL", "PARTNER_WEBSITE_URL", "AWS_REGION"} {
		t.Setenv(key, "")
	}

	content := fmt.Sprintf(`
storage:
  path: %q
transport:
  type: sandbox
  sandbox:
    path: %q
message:
  from: "sales@example.com"
logging:
  level: error
%s`, filepath.Join(dir, "campaigner.db"), filepath.Join(dir, "sandbox.db"), extra)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewOpensBoltStore(t *testing.T) {
	a := newTestApp(t, newTestConfig(t, ""))

	if a.bolt == nil {
		t.Fatal("bolt store not opened")
	}
	n, err := a.Store().CountCampaigns(context.Background())
	if err != nil {
		t.Fatalf("CountCampaigns() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountCampaigns() = %d, want 0", n)
	}
}

func TestSenderSandbox(t *testing.T) {
	a := newTestApp(t, newTestConfig(t, ""))

	sender, err := a.Sender(context.Background())
	if err != nil {
		t.Fatalf("Sender() error = %v", err)
	}
	if sender.Name() != "sandbox" {
		t.Errorf("Name() = %q, want sandbox", sender.Name())
	}
	if a.sharesStoreFile() {
		t.Error("sharesStoreFile() = true for separate paths")
	}

	again, err := a.Sandbox()
	if err != nil {
		t.Fatalf("Sandbox() error = %v", err)
	}
	if again != sender.(*transport.Sandbox) {
		t.Error("Sandbox() opened a second capture store")
	}
}

func TestSandboxSharesBoltFile(t *testing.T) {
	cfg := newTestConfig(t, "")
	cfg.Transport.Sandbox.Path = cfg.Storage.Path
	a := newTestApp(t, cfg)

	if !a.sharesStoreFile() {
		t.Fatal("sharesStoreFile() = false, want true")
	}
	sb, err := a.Sandbox()
	if err != nil {
		t.Fatalf("Sandbox() error = %v", err)
	}

	ctx := context.Background()
	res, err := sb.Send(ctx, &transport.Message{From: "sales@example.com", To: "a@acme.com", Subject: "Hi", Text: "hello"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !res.Accepted() {
		t.Errorf("Send() status = %d, want 202", res.StatusCode)
	}
}

func TestSenderByType(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*config.Config)
		want  string
	}{
		{"sendgrid", func(c *config.Config) {
			c.Transport.Type = config.TransportSendGrid
			c.Transport.SendGrid.APIKey = "SG.test"
		}, "sendgrid"},
		{"smtp", func(c *config.Config) {
			c.Transport.Type = config.TransportSMTP
			c.Transport.SMTP.Addr = "127.0.0.1:2525"
		}, "smtp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t, "")
			tt.apply(cfg)
			a := newTestApp(t, cfg)

			sender, err := a.Sender(context.Background())
			if err != nil {
				t.Fatalf("Sender() error = %v", err)
			}
			if sender.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", sender.Name(), tt.want)
			}
		})
	}
}

func TestSenderDKIMMissingKey(t *testing.T) {
	cfg := newTestConfig(t, "")
	cfg.Transport.Type = config.TransportSMTP
	cfg.Transport.SMTP.Addr = "127.0.0.1:2525"
	cfg.Transport.SMTP.DKIM = config.DKIMConfig{
		Enabled:  true,
		Selector: "mail",
		Domain:   "example.com",
		KeyFile:  filepath.Join(t.TempDir(), "missing.pem"),
	}
	a := newTestApp(t, cfg)

	if _, err := a.Sender(context.Background()); err == nil {
		t.Error("Sender() error = nil, want missing key error")
	}
}

func TestDispatcherRejectsBadTemplate(t *testing.T) {
	cfg := newTestConfig(t, "")
	cfg.Message.Subject = "{{.Broken"
	a := newTestApp(t, cfg)

	if _, err := a.Dispatcher(context.Background()); err == nil {
		t.Error("Dispatcher() error = nil, want template error")
	}
}

func TestSyncerSendGridNeedsKey(t *testing.T) {
	a := newTestApp(t, newTestConfig(t, ""))

	if _, err := a.Syncer(context.Background()); err == nil {
		t.Error("Syncer() error = nil, want missing key error")
	}

	a.config.Transport.SendGrid.APIKey = "SG.test"
	syncer, err := a.Syncer(context.Background())
	if err != nil {
		t.Fatalf("Syncer() error = %v", err)
	}
	if syncer == nil {
		t.Error("Syncer() = nil")
	}
}
