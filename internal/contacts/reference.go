package contacts

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/foxzi/campaigner/internal/email"
	"github.com/foxzi/campaigner/internal/models"
)

// ReferenceStats reports a provider or customer list import
type ReferenceStats struct {
	Read     int `json:"read"`
	Added    int `json:"added"`
	Invalid  int `json:"invalid"`
	Existing int `json:"existing"`
}

// ReadList returns the non-empty, non-comment lines of r, trimmed
func ReadList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list: %w", err)
	}
	return out, nil
}

// ImportProviders adds public mailbox provider domains
func (s *Service) ImportProviders(ctx context.Context, lines []string) (*ReferenceStats, error) {
	stats := &ReferenceStats{Read: len(lines)}

	var domains []string
	for _, line := range lines {
		d := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(line), "@"))
		// reuse the address check to validate the bare domain
		if email.ExtractDomain("x@"+d) == "" {
			stats.Invalid++
			continue
		}
		domains = append(domains, d)
	}

	added, err := s.store.AddProviderDomains(ctx, domains)
	if err != nil {
		return nil, fmt.Errorf("failed to add provider domains: %w", err)
	}
	stats.Added = added
	stats.Existing = len(domains) - added

	s.logger.Info("provider domains imported", "added", stats.Added, "invalid", stats.Invalid)
	return stats, nil
}

// ImportCustomers adds existing customers by email; their domains become
// excluded from campaigns
func (s *Service) ImportCustomers(ctx context.Context, lines []string, source string) (*ReferenceStats, error) {
	stats := &ReferenceStats{Read: len(lines)}
	now := s.now().UTC()

	var customers []*models.ExistingCustomer
	for _, line := range lines {
		addr := email.Normalize(line)
		domain, ok := email.Check(addr)
		if !ok {
			stats.Invalid++
			continue
		}
		customers = append(customers, &models.ExistingCustomer{
			Email:     addr,
			Domain:    domain,
			Source:    source,
			AddedDate: now,
		})
	}

	added, err := s.store.AddCustomers(ctx, customers)
	if err != nil {
		return nil, fmt.Errorf("failed to add customers: %w", err)
	}
	stats.Added = added
	stats.Existing = len(customers) - added

	s.logger.Info("customers imported", "added", stats.Added, "invalid", stats.Invalid)
	return stats, nil
}
