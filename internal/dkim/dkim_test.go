package dkim

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emersion/go-msgauth/dkim"
)

const testMessage = "From: sales@example.com\r\n" +
	"To: jane@acme.com\r\n" +
	"Subject: Hello\r\n" +
	"\r\n" +
	"Hi Jane\r\n"

func TestSignVerifies(t *testing.T) {
	kp, err := GenerateKey("example.com", "campaign")
	if err != nil {
		t.Fatal(err)
	}
	record, err := kp.DNSRecord()
	if err != nil {
		t.Fatal(err)
	}

	signed, err := NewSigner(kp.PrivateKey, kp.Domain, kp.Selector).Sign([]byte(testMessage))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !bytes.HasPrefix(signed, []byte("DKIM-Signature:")) {
		t.Fatalf("signed message does not start with DKIM-Signature: %q", signed[:40])
	}

	verifications, err := dkim.VerifyWithOptions(bytes.NewReader(signed), &dkim.VerifyOptions{
		LookupTXT: func(domain string) ([]string, error) {
			if domain != kp.DNSName() {
				t.Errorf("lookup of %q, want %q", domain, kp.DNSName())
			}
			return []string{record}, nil
		},
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(verifications) != 1 || verifications[0].Err != nil {
		t.Errorf("verifications = %+v", verifications)
	}
}

func TestKeyRoundTrip(t *testing.T) {
	kp, err := GenerateKey("example.com", "s1")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "keys", "dkim.pem")
	if err := kp.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	s, err := NewSignerFromFile(path, "example.com", "s1")
	if err != nil {
		t.Fatalf("NewSignerFromFile() error = %v", err)
	}
	if s.Domain() != "example.com" || s.Selector() != "s1" {
		t.Errorf("signer = %s/%s", s.Domain(), s.Selector())
	}

	if kp.DNSName() != "s1._domainkey.example.com" {
		t.Errorf("DNSName() = %q", kp.DNSName())
	}
	record, _ := kp.DNSRecord()
	if !strings.HasPrefix(record, "v=DKIM1; k=rsa; p=") {
		t.Errorf("DNSRecord() = %q", record)
	}
}

func TestLoadPrivateKey(t *testing.T) {
	dir := t.TempDir()

	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(edKey)
	if err != nil {
		t.Fatal(err)
	}

	files := map[string][]byte{
		"ed25519.pem": pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}),
		"garbage.pem": []byte("not pem"),
		"cert.pem":    pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		file    string
		wantErr bool
	}{
		{"ed25519.pem", false},
		{"garbage.pem", true},
		{"cert.pem", true},
		{"missing.pem", true},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := LoadPrivateKey(filepath.Join(dir, tt.file))
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadPrivateKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
