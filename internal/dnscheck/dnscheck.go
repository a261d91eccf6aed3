// Package dnscheck checks the sender domain's authentication records
// before a campaign goes out.
package dnscheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// ErrInvalidDomain is returned for a malformed domain or selector
var ErrInvalidDomain = errors.New("invalid domain name")

var (
	domainRegex   = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)
	selectorRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
)

// Check statuses
const (
	StatusOK       = "ok"
	StatusWarning  = "warning"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

// Resolver is the TXT lookup used by the checks; *net.Resolver satisfies it
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// CheckResult is one record check
type CheckResult struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Report holds all checks for one sender domain
type Report struct {
	Domain  string        `json:"domain"`
	Results []CheckResult `json:"results"`
}

// Ready reports whether every check passed or only warned
func (r *Report) Ready() bool {
	for _, res := range r.Results {
		if res.Status == StatusError || res.Status == StatusNotFound {
			return false
		}
	}
	return true
}

// Checker runs sender domain checks
type Checker struct {
	resolver Resolver
}

// New creates a checker; nil uses net.DefaultResolver
func New(resolver Resolver) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Checker{resolver: resolver}
}

// CheckSender checks SPF and DMARC for domain, and DKIM when selector is set
func (c *Checker) CheckSender(ctx context.Context, domain, selector string) (*Report, error) {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if domain == "" || len(domain) > 253 || !domainRegex.MatchString(domain) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	if selector != "" && !selectorRegex.MatchString(selector) {
		return nil, fmt.Errorf("%w: selector %q", ErrInvalidDomain, selector)
	}

	report := &Report{Domain: domain}
	report.Results = append(report.Results, c.checkSPF(ctx, domain))
	if selector != "" {
		report.Results = append(report.Results, c.checkDKIM(ctx, domain, selector))
	}
	report.Results = append(report.Results, c.checkDMARC(ctx, domain))

	return report, nil
}

// lookup returns the TXT records of name. A missing name is reported as a
// not_found result rather than an error.
func (c *Checker) lookup(ctx context.Context, name string, result *CheckResult) ([]string, bool) {
	records, err := c.resolver.LookupTXT(ctx, name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			result.Status = StatusNotFound
			return nil, false
		}
		result.Status = StatusError
		result.Message = fmt.Sprintf("lookup failed: %v", err)
		return nil, false
	}
	return records, true
}

func (c *Checker) checkSPF(ctx context.Context, domain string) CheckResult {
	result := CheckResult{Type: "SPF"}

	records, ok := c.lookup(ctx, domain, &result)
	if !ok {
		if result.Status == StatusNotFound {
			result.Message = "no SPF record; providers may reject or junk campaign mail"
		}
		return result
	}

	for _, txt := range records {
		if !strings.HasPrefix(txt, "v=spf1") {
			continue
		}
		result.Status = StatusOK
		result.Value = txt
		switch {
		case strings.Contains(txt, "+all"):
			result.Status = StatusWarning
			result.Message = "SPF allows any sender (+all)"
		case strings.Contains(txt, "-all"):
			result.Message = "strict policy (-all)"
		case strings.Contains(txt, "~all"):
			result.Message = "soft fail (~all)"
		}
		return result
	}

	result.Status = StatusNotFound
	result.Message = "no SPF record; providers may reject or junk campaign mail"
	return result
}

func (c *Checker) checkDKIM(ctx context.Context, domain, selector string) CheckResult {
	name := selector + "._domainkey." + domain
	result := CheckResult{Type: "DKIM (" + name + ")"}

	records, ok := c.lookup(ctx, name, &result)
	if !ok {
		if result.Status == StatusNotFound {
			result.Message = fmt.Sprintf("no DKIM key published for selector %q", selector)
		}
		return result
	}

	full := strings.Join(records, "")
	result.Value = truncate(full, 100)
	if !strings.Contains(full, "v=DKIM1") {
		result.Status = StatusWarning
		result.Message = "TXT record is not a DKIM key record"
		return result
	}
	if tagValue(full, "p") == "" {
		result.Status = StatusError
		result.Message = "DKIM record has no public key (p=)"
		return result
	}

	result.Status = StatusOK
	return result
}

func (c *Checker) checkDMARC(ctx context.Context, domain string) CheckResult {
	result := CheckResult{Type: "DMARC"}

	records, ok := c.lookup(ctx, "_dmarc."+domain, &result)
	if !ok {
		if result.Status == StatusNotFound {
			result.Message = "no DMARC record; bulk senders are required to publish one"
		}
		return result
	}

	full := strings.Join(records, "")
	result.Value = full
	if !strings.HasPrefix(full, "v=DMARC1") {
		result.Status = StatusWarning
		result.Message = "TXT record is not a DMARC record"
		return result
	}

	result.Status = StatusOK
	switch {
	case strings.Contains(full, "p=reject"):
		result.Message = "reject policy"
	case strings.Contains(full, "p=quarantine"):
		result.Message = "quarantine policy"
	case strings.Contains(full, "p=none"):
		result.Message = "monitoring only (p=none)"
	}
	return result
}

// tagValue returns the value of tag in a "k=v; k=v" record
func tagValue(record, tag string) string {
	for _, part := range strings.Split(record, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.TrimSpace(k) == tag {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
