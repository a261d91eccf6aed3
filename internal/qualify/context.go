package qualify

import (
	"context"
	"errors"
	"time"

	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/store"
)

// ProviderSet is the snapshot of known provider domains for one run
type ProviderSet map[string]struct{}

// NewProviderSet builds a set from a domain listing
func NewProviderSet(domains []string) ProviderSet {
	p := make(ProviderSet, len(domains))
	for _, d := range domains {
		p[d] = struct{}{}
	}
	return p
}

// LoadProviderSet reads the provider listing once
func LoadProviderSet(ctx context.Context, src interface {
	ListProviderDomains(ctx context.Context) ([]string, error)
}) (ProviderSet, error) {
	domains, err := src.ListProviderDomains(ctx)
	if err != nil {
		return nil, err
	}
	return NewProviderSet(domains), nil
}

// IsProvider reports whether domain hosts unrelated individuals
func (p ProviderSet) IsProvider(domain string) bool {
	_, ok := p[domain]
	return ok
}

// RunContext is the state of a single assembly run
type RunContext struct {
	Providers ProviderSet
	Store     Store
	Now       time.Time

	seenEmails  map[string]struct{}
	seenDomains map[string]string // domain -> admitted email
}

// NewRunContext starts a run
func NewRunContext(providers ProviderSet, st Store, now time.Time) *RunContext {
	return &RunContext{
		Providers:   providers,
		Store:       st,
		Now:         now,
		seenEmails:  make(map[string]struct{}),
		seenDomains: make(map[string]string),
	}
}

// Admit records an accepted contact so later candidates see it
func (rc *RunContext) Admit(c *models.Contact) {
	rc.seenEmails[c.Email] = struct{}{}
	if c.Domain != "" {
		if _, ok := rc.seenDomains[c.Domain]; !ok {
			rc.seenDomains[c.Domain] = c.Email
		}
	}
}

// Seen reports whether email was admitted earlier in the run
func (rc *RunContext) Seen(email string) bool {
	_, ok := rc.seenEmails[email]
	return ok
}

// DomainHolder returns the email admitted for domain earlier in the run
func (rc *RunContext) DomainHolder(domain string) (string, bool) {
	holder, ok := rc.seenDomains[domain]
	return holder, ok
}

// Existing returns the persisted contact for the subject, or nil
func (s *Subject) Existing(ctx context.Context, rc *RunContext) (*models.Contact, error) {
	if s.existingLoaded {
		return s.existing, nil
	}

	c, err := rc.Store.GetContact(ctx, s.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	s.existing = c
	s.existingLoaded = true
	return s.existing, nil
}
