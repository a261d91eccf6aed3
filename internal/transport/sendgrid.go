package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SendGrid sends through the v3 Mail Send API
type SendGrid struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSendGrid creates a SendGrid sender. baseURL is the API root without /v3.
func NewSendGrid(apiKey, baseURL string, timeout time.Duration) *SendGrid {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SendGrid{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the transport name
func (s *SendGrid) Name() string {
	return "sendgrid"
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To         []sgAddress       `json:"to"`
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// Send posts one message. SendGrid answers 202 when it queues the mail.
func (s *SendGrid) Send(ctx context.Context, msg *Message) (*Result, error) {
	p := sgPersonalization{To: []sgAddress{{Email: msg.To}}}
	if msg.Campaign != "" {
		p.CustomArgs = map[string]string{"campaign": msg.Campaign}
	}

	payload := sgMail{
		Personalizations: []sgPersonalization{p},
		From:             sgAddress{Email: msg.From, Name: msg.FromName},
		Subject:          msg.Subject,
	}
	// text/plain must precede text/html
	if msg.Text != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/html", Value: msg.HTML})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sendgrid: %w", err)
	}
	defer resp.Body.Close()

	result := &Result{
		StatusCode: resp.StatusCode,
		MessageID:  resp.Header.Get("X-Message-Id"),
	}
	if !result.Accepted() {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		result.Detail = strings.TrimSpace(string(detail))
	}
	return result, nil
}
