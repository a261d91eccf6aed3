package suppression

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// sendGridPageSize is the largest page the unsubscribes endpoint returns
const sendGridPageSize = 1000

// SendGridSource reads global unsubscribes from the SendGrid v3 API
type SendGridSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSendGridSource creates a source. baseURL is the API root without /v3.
func NewSendGridSource(apiKey, baseURL string, timeout time.Duration) *SendGridSource {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SendGridSource{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the source name
func (s *SendGridSource) Name() string {
	return "sendgrid"
}

type unsubscribe struct {
	Email   string `json:"email"`
	Created int64  `json:"created"`
}

// Fetch pages through every unsubscribe until a short page
func (s *SendGridSource) Fetch(ctx context.Context) ([]string, error) {
	var out []string
	for offset := 0; ; offset += sendGridPageSize {
		page, err := s.page(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, u := range page {
			out = append(out, u.Email)
		}
		if len(page) < sendGridPageSize {
			return out, nil
		}
	}
}

func (s *SendGridSource) page(ctx context.Context, offset int) ([]unsubscribe, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(sendGridPageSize))
	q.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v3/suppression/unsubscribes?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sendgrid: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page []unsubscribe
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return page, nil
}
