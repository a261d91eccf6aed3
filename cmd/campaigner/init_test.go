package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/foxzi/campaigner/internal/config"
)

func TestGenerateRandomString(t *testing.T) {
	for _, length := range []int{8, 16, 32, 64} {
		result := generateRandomString(length)
		if len(result) != length {
			t.Errorf("generateRandomString(%d) returned string of length %d", length, len(result))
		}
	}

	if generateRandomString(32) == generateRandomString(32) {
		t.Error("generateRandomString should generate unique strings")
	}
}

func TestGenerateConfigLoads(t *testing.T) {
	for _, key := range []string{"MONGODB_URI", "SENDGRID_API_KEY", "DEFAULT_FROM_EMAIL", "PARTNER_WEBSITE_URL", "AWS_REGION"} {
		t.Setenv(key, "")
	}

	tests := []struct {
		transport string
		want      string
	}{
		{config.TransportSandbox, config.TransportSandbox},
		{config.TransportSES, config.TransportSES},
		{config.TransportSMTP, config.TransportSMTP},
	}

	for _, tt := range tests {
		t.Run(tt.transport, func(t *testing.T) {
			initDataDir = t.TempDir()
			initFrom = "sales@example.com"
			initTransport = tt.transport

			content := generateConfig()
			if !strings.Contains(content, "sales@example.com") {
				t.Error("config should contain the sender address")
			}

			path := filepath.Join(initDataDir, "config.yaml")
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			cfg, err := config.Load(path)
			if err != nil {
				t.Fatalf("config.Load() error = %v", err)
			}
			if cfg.Transport.Type != tt.want {
				t.Errorf("Transport.Type = %v, want %v", cfg.Transport.Type, tt.want)
			}
			if cfg.DispatchCooldown() != 336*time.Hour {
				t.Errorf("DispatchCooldown() = %v, want 336h", cfg.DispatchCooldown())
			}
			if cfg.Storage.Path != filepath.Join(initDataDir, "campaigner.db") {
				t.Errorf("Storage.Path = %v", cfg.Storage.Path)
			}
			if len(cfg.API.APIKey) != 32 {
				t.Errorf("API key length = %d, want 32", len(cfg.API.APIKey))
			}
		})
	}
}

func TestSendGridConfigNeedsKey(t *testing.T) {
	t.Setenv("SENDGRID_API_KEY", "")
	initDataDir = t.TempDir()
	initFrom = "sales@example.com"
	initTransport = config.TransportSendGrid

	path := filepath.Join(initDataDir, "config.yaml")
	if err := os.WriteFile(path, []byte(generateConfig()), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Error("config.Load() error = nil, want missing api key")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out strings.Builder
		if got := confirm(strings.NewReader(tt.input), &out, "Delete? "); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if out.String() != "Delete? " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"0123456789abcdef", 8, "01234..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
