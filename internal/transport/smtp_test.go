package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/foxzi/campaigner/internal/dkim"
)

// relay is an in-process SMTP server recording what it receives
type relay struct {
	mu       sync.Mutex
	from     string
	to       []string
	data     string
	user     string
	rejectTo string
	// tls is set per MAIL FROM to whether the session ran over TLS
	tls      []bool
}

func (r *relay) NewSession(c *smtp.Conn) (smtp.Session, error) {
	_, isTLS := c.TLSConnectionState()
	return &relaySession{relay: r, tls: isTLS}, nil
}

type relaySession struct {
	relay *relay
	tls   bool
}

func (s *relaySession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *relaySession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != "campaigner" || password != "secret" {
			return errors.New("bad credentials")
		}
		s.relay.mu.Lock()
		s.relay.user = username
		s.relay.mu.Unlock()
		return nil
	}), nil
}

func (s *relaySession) Mail(from string, _ *smtp.MailOptions) error {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	s.relay.from = from
	s.relay.tls = append(s.relay.tls, s.tls)
	return nil
}

func (s *relaySession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	if to == s.relay.rejectTo {
		return &smtp.SMTPError{Code: 550, Message: "mailbox unavailable"}
	}
	s.relay.to = append(s.relay.to, to)
	return nil
}

func (s *relaySession) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.relay.mu.Lock()
	s.relay.data = string(b)
	s.relay.mu.Unlock()
	return nil
}

func (s *relaySession) Reset()        {}
func (s *relaySession) Logout() error { return nil }

func startRelay(t *testing.T, r *relay) string {
	t.Helper()
	return startRelayTLS(t, r, nil)
}

func startRelayTLS(t *testing.T, r *relay, tlsConfig *tls.Config) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := smtp.NewServer(r)
	srv.Domain = "relay.test"
	srv.AllowInsecureAuth = true
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second
	srv.TLSConfig = tlsConfig

	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })
	return l.Addr().String()
}

func TestSMTPSend(t *testing.T) {
	r := &relay{}
	addr := startRelay(t, r)

	kp, err := dkim.GenerateKey("example.com", "campaign")
	if err != nil {
		t.Fatal(err)
	}

	s := NewSMTP(SMTPOptions{
		Addr:     addr,
		Username: "campaigner",
		Password: "secret",
		Helo:     "campaigner.test",
		Signer:   dkim.NewSigner(kp.PrivateKey, "example.com", "campaign"),
	}, nil)

	res, err := s.Send(context.Background(), &Message{
		From:    "sales@example.com",
		To:      "jane@acme.com",
		Subject: "Hello",
		Text:    "hi",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !res.Accepted() || res.MessageID == "" {
		t.Errorf("Send() = %+v, want accepted", res)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user != "campaigner" {
		t.Errorf("authenticated user = %q", r.user)
	}
	if r.from != "sales@example.com" || len(r.to) != 1 || r.to[0] != "jane@acme.com" {
		t.Errorf("envelope = %s -> %v", r.from, r.to)
	}
	if !strings.HasPrefix(r.data, "DKIM-Signature:") {
		t.Errorf("message not signed: %.60q", r.data)
	}
}

func TestSMTPRejectedRecipient(t *testing.T) {
	r := &relay{rejectTo: "gone@acme.com"}
	addr := startRelay(t, r)

	res, err := NewSMTP(SMTPOptions{Addr: addr}, nil).Send(context.Background(), &Message{
		From: "sales@example.com",
		To:   "gone@acme.com",
		Text: "hi",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if res.Accepted() || res.StatusCode != 550 {
		t.Errorf("Send() = %+v, want 550", res)
	}
}

func TestSMTPUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	_, err = NewSMTP(SMTPOptions{Addr: addr, Timeout: time.Second}, nil).Send(context.Background(), &Message{To: "a@b.com"})
	if err == nil {
		t.Error("Send() error = nil, want connection error")
	}
}

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "relay.test"},
		DNSNames:     []string{"relay.test"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestSMTPStartTLS(t *testing.T) {
	r := &relay{}
	addr := startRelayTLS(t, r, &tls.Config{Certificates: []tls.Certificate{selfSignedCert(t)}})

	s := NewSMTP(SMTPOptions{
		Addr:      addr,
		Username:  "campaigner",
		Password:  "secret",
		TLSConfig: &tls.Config{InsecureSkipVerify: true},
	}, nil)

	for _, to := range []string{"jane@acme.com", "ops@beta.io"} {
		res, err := s.Send(context.Background(), &Message{
			From: "sales@example.com",
			To:   to,
			Text: "hi",
		})
		if err != nil {
			t.Fatalf("Send(%s) error = %v", to, err)
		}
		if !res.Accepted() {
			t.Errorf("Send(%s) = %+v, want accepted", to, res)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.to) != 2 {
		t.Fatalf("delivered = %v, want 2 recipients", r.to)
	}
	for i, secure := range r.tls {
		if !secure {
			t.Errorf("message %d sent without TLS", i)
		}
	}
	if r.user != "campaigner" {
		t.Errorf("authenticated user = %q", r.user)
	}
}

func TestSMTPPlainRelayStaysPlain(t *testing.T) {
	r := &relay{}
	addr := startRelay(t, r)

	s := NewSMTP(SMTPOptions{Addr: addr}, nil)
	for i := 0; i < 2; i++ {
		if _, err := s.Send(context.Background(), &Message{From: "sales@example.com", To: "jane@acme.com", Text: "hi"}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	if s.tlsMode.Load() != tlsPlain {
		t.Errorf("tlsMode = %d, want plain", s.tlsMode.Load())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tls) != 2 || r.tls[0] || r.tls[1] {
		t.Errorf("tls per message = %v, want [false false]", r.tls)
	}
}
