package dnscheck

import (
	"context"
	"errors"
	"net"
	"testing"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if name == "_dmarc.broken.com" {
		return nil, errors.New("server misbehaving")
	}
	records, ok := f[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

var zone = fakeResolver{
	"example.com":                 {"google-site-verification=abc", "v=spf1 include:sendgrid.net -all"},
	"mail._domainkey.example.com": {"v=DKIM1; k=rsa; ", "p=MIIBIjANBg"},
	"_dmarc.example.com":          {"v=DMARC1; p=quarantine; rua=mailto:d@example.com"},
	"open.com":                    {"v=spf1 +all"},
	"revoked._domainkey.open.com": {"v=DKIM1; k=rsa; p="},
	"_dmarc.open.com":             {"v=DMARC1; p=none"},
	"broken.com":                  {"v=spf1 ~all"},
	"nokey._domainkey.broken.com": {"some other text"},
}

func statuses(r *Report) map[string]string {
	out := make(map[string]string)
	for _, res := range r.Results {
		out[res.Type] = res.Status
	}
	return out
}

func TestCheckSender(t *testing.T) {
	c := New(zone)
	ctx := context.Background()

	tests := []struct {
		name      string
		domain    string
		selector  string
		want      map[string]string
		wantReady bool
	}{
		{
			name:     "fully configured",
			domain:   "Example.com.",
			selector: "mail",
			want: map[string]string{
				"SPF":                                StatusOK,
				"DKIM (mail._domainkey.example.com)": StatusOK,
				"DMARC":                              StatusOK,
			},
			wantReady: true,
		},
		{
			name:     "permissive and revoked",
			domain:   "open.com",
			selector: "revoked",
			want: map[string]string{
				"SPF":                                StatusWarning,
				"DKIM (revoked._domainkey.open.com)": StatusError,
				"DMARC":                              StatusOK,
			},
			wantReady: false,
		},
		{
			name:   "nothing published, no selector",
			domain: "empty.org",
			want: map[string]string{
				"SPF":   StatusNotFound,
				"DMARC": StatusNotFound,
			},
			wantReady: false,
		},
		{
			name:     "lookup failure and foreign record",
			domain:   "broken.com",
			selector: "nokey",
			want: map[string]string{
				"SPF":                                StatusOK,
				"DKIM (nokey._domainkey.broken.com)": StatusWarning,
				"DMARC":                              StatusError,
			},
			wantReady: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := c.CheckSender(ctx, tt.domain, tt.selector)
			if err != nil {
				t.Fatalf("CheckSender() error = %v", err)
			}
			got := statuses(report)
			if len(got) != len(tt.want) {
				t.Errorf("results = %v, want %v", got, tt.want)
			}
			for typ, status := range tt.want {
				if got[typ] != status {
					t.Errorf("%s status = %q, want %q", typ, got[typ], status)
				}
			}
			if report.Ready() != tt.wantReady {
				t.Errorf("Ready() = %v, want %v", report.Ready(), tt.wantReady)
			}
		})
	}
}

func TestCheckSenderValidation(t *testing.T) {
	c := New(zone)

	tests := []struct {
		name     string
		domain   string
		selector string
	}{
		{"empty", "", ""},
		{"invalid chars", "example!.com", ""},
		{"double dot", "example..com", ""},
		{"path injection", "../etc/passwd", ""},
		{"bad selector", "example.com", "-mail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CheckSender(context.Background(), tt.domain, tt.selector)
			if !errors.Is(err, ErrInvalidDomain) {
				t.Errorf("CheckSender(%q, %q) error = %v, want ErrInvalidDomain", tt.domain, tt.selector, err)
			}
		})
	}
}
