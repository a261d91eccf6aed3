package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/foxzi/campaigner/internal/dkim"
	"github.com/foxzi/campaigner/internal/logging"
)

// SMTPOptions configures the relay transport
type SMTPOptions struct {
	Addr     string
	Username string
	Password string
	Helo     string
	Timeout  time.Duration
	Signer   *dkim.Signer
	// TLSConfig overrides the STARTTLS config, for tests
	TLSConfig *tls.Config
}

// SMTP submits messages to a relay with optional DKIM signing
type SMTP struct {
	opts    SMTPOptions
	logger  *slog.Logger
	now     func() time.Time
	tlsMode atomic.Int32
}

// NewSMTP creates an SMTP relay sender
func NewSMTP(opts SMTPOptions, logger *slog.Logger) *SMTP {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Helo == "" {
		opts.Helo = "localhost"
	}
	return &SMTP{
		opts:   opts,
		logger: logging.Discard(logger).With("component", "smtp"),
		now:    time.Now,
	}
}

// Name returns the transport name
func (s *SMTP) Name() string {
	return "smtp"
}

// Send submits one message. A 250 after DATA is reported as 202; an SMTP
// rejection is reported with its reply code.
func (s *SMTP) Send(ctx context.Context, msg *Message) (*Result, error) {
	id := uuid.New().String()
	data := BuildMessage(msg, id, s.now())

	if s.opts.Signer != nil {
		signed, err := s.opts.Signer.Sign(data)
		if err != nil {
			s.logger.Warn("DKIM signing failed, sending unsigned",
				"domain", s.opts.Signer.Domain(),
				"error", err,
			)
		} else {
			data = signed
		}
	}

	if err := s.submit(ctx, msg.From, msg.To, data); err != nil {
		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			return &Result{StatusCode: smtpErr.Code, Detail: smtpErr.Message}, nil
		}
		return nil, err
	}

	return &Result{StatusCode: StatusAccepted, MessageID: id}, nil
}

func (s *SMTP) submit(ctx context.Context, from, to string, data []byte) error {
	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if s.opts.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.opts.Username, s.opts.Password)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(to, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := bytes.NewReader(data).WriteTo(wc); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("DATA close failed: %w", err)
	}

	return c.Quit()
}

const (
	tlsUnknown int32 = iota
	tlsPlain
	tlsStartTLS
)

// connect opens a greeted session. The first connection learns whether the
// relay offers STARTTLS; later ones go straight to the right mode.
func (s *SMTP) connect(ctx context.Context) (*smtp.Client, error) {
	if s.tlsMode.Load() == tlsUnknown {
		conn, err := s.dial(ctx)
		if err != nil {
			return nil, err
		}
		c := smtp.NewClient(conn)
		if err := c.Hello(s.opts.Helo); err != nil {
			c.Close()
			return nil, fmt.Errorf("HELO failed: %w", err)
		}
		if ok, _ := c.Extension("STARTTLS"); !ok {
			s.tlsMode.Store(tlsPlain)
			return c, nil
		}
		s.tlsMode.Store(tlsStartTLS)
		if err := c.Quit(); err != nil {
			c.Close()
		}
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	if s.tlsMode.Load() == tlsPlain {
		c := smtp.NewClient(conn)
		if err := c.Hello(s.opts.Helo); err != nil {
			c.Close()
			return nil, fmt.Errorf("HELO failed: %w", err)
		}
		return c, nil
	}

	c, err := smtp.NewClientStartTLS(conn, s.tlsConfig())
	if err != nil {
		return nil, fmt.Errorf("STARTTLS failed: %w", err)
	}
	if err := c.Hello(s.opts.Helo); err != nil {
		c.Close()
		return nil, fmt.Errorf("HELO failed: %w", err)
	}
	return c, nil
}

func (s *SMTP) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: s.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", s.opts.Addr, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.opts.Timeout)
	}
	conn.SetDeadline(deadline)
	return conn, nil
}

func (s *SMTP) tlsConfig() *tls.Config {
	if s.opts.TLSConfig != nil {
		return s.opts.TLSConfig
	}
	host, _, _ := net.SplitHostPort(s.opts.Addr)
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}
