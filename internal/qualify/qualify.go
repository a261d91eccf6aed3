// Package qualify decides whether a candidate record becomes a campaign
// recipient. Admission is an ordered chain of rules; the first rule that
// fails rejects the candidate with its reason and later rules are skipped.
package qualify

import (
	"context"
	"time"

	"github.com/foxzi/campaigner/internal/email"
	"github.com/foxzi/campaigner/internal/intake"
	"github.com/foxzi/campaigner/internal/models"
)

// Reason tags a rejected candidate
type Reason string

const (
	ReasonMissingEmail           Reason = "missing_email"
	ReasonInvalidEmail           Reason = "invalid_email_format"
	ReasonInvalidDomain          Reason = "invalid_domain_format"
	ReasonCampaignDuplicate      Reason = "campaign_duplicate"
	ReasonExistingCustomer       Reason = "existing_customer"
	ReasonRecentlyContacted      Reason = "recently_contacted"
	ReasonBusinessDomainConflict Reason = "business_domain_conflict"

	// Assigned by the assembler, not by rules
	ReasonMalformedRecord Reason = "malformed_record"
	ReasonProcessingError Reason = "processing_error"
)

// CustomerExclusion selects how existing customers are kept out of campaigns
type CustomerExclusion string

const (
	// ExcludeEmailOrDomain rejects a candidate whose email or domain belongs to a customer
	ExcludeEmailOrDomain CustomerExclusion = "email_or_domain"
	// ExcludeDomainOnly treats customer domains as already represented and
	// applies domain uniqueness to every domain, providers included
	ExcludeDomainOnly CustomerExclusion = "domain_only"
)

// Policy configures the rule chain
type Policy struct {
	CustomerExclusion       CustomerExclusion
	RegisterBusinessDomains bool
	// Cooldown rejects existing contacts emailed more recently than this; 0 disables
	Cooldown time.Duration
}

// Store is the read surface qualification needs
type Store interface {
	GetContact(ctx context.Context, email string) (*models.Contact, error)
	ContactsByDomain(ctx context.Context, domain string) ([]*models.Contact, error)
	IsCustomer(ctx context.Context, email, domain string) (bool, error)
	HasCustomerDomain(ctx context.Context, domain string) (bool, error)
}

// Decision is an admitted candidate and the writes it stages
type Decision struct {
	Contact     *models.Contact
	NewToMaster bool
	// RegisterCustomer is set when the new contact's business domain should
	// be recorded as known
	RegisterCustomer *models.ExistingCustomer
}

// Qualifier runs candidates through the rule chain
type Qualifier struct {
	policy Policy
	rules  []Rule
}

// New builds a qualifier for policy
func New(policy Policy) *Qualifier {
	if policy.CustomerExclusion == "" {
		policy.CustomerExclusion = ExcludeEmailOrDomain
	}
	return &Qualifier{
		policy: policy,
		rules:  Rules(policy),
	}
}

// Qualify returns a Decision, or the rejection reason. Errors are store
// failures; record-level problems are reasons.
func (q *Qualifier) Qualify(ctx context.Context, rc *RunContext, cand *intake.Candidate) (*Decision, Reason, error) {
	s := newSubject(cand, rc.Providers)

	for _, rule := range q.rules {
		pass, err := rule.Check(ctx, rc, s)
		if err != nil {
			return nil, "", err
		}
		if !pass {
			return nil, rule.Reason, nil
		}
	}

	return q.accept(ctx, rc, s)
}

func (q *Qualifier) accept(ctx context.Context, rc *RunContext, s *Subject) (*Decision, Reason, error) {
	existing, err := s.Existing(ctx, rc)
	if err != nil {
		return nil, "", err
	}

	info := s.Candidate.Info
	if existing != nil {
		c := *existing
		mergeString(&c.BusinessName, info.BusinessName)
		mergeString(&c.FirstName, info.FirstName)
		mergeString(&c.Surname, info.Surname)
		mergeString(&c.URL, s.Candidate.URL)
		c.IsProviderDomain = s.IsProvider
		return &Decision{Contact: &c}, "", nil
	}

	d := &Decision{
		NewToMaster: true,
		Contact: &models.Contact{
			Email:            s.Email,
			Domain:           s.Domain,
			IsProviderDomain: s.IsProvider,
			BusinessName:     info.BusinessName,
			FirstName:        info.FirstName,
			Surname:          info.Surname,
			URL:              s.Candidate.URL,
			OriginalData:     s.Candidate.Original,
			AddedDate:        rc.Now,
			Active:           true,
		},
	}

	if q.policy.RegisterBusinessDomains && !s.IsProvider {
		known, err := rc.Store.HasCustomerDomain(ctx, s.Domain)
		if err != nil {
			return nil, "", err
		}
		if !known {
			d.RegisterCustomer = &models.ExistingCustomer{
				Email:     s.Email,
				Domain:    s.Domain,
				Source:    "qualification",
				AddedDate: rc.Now,
			}
		}
	}

	return d, "", nil
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Subject is a candidate as seen by the rules
type Subject struct {
	Candidate  *intake.Candidate
	Email      string
	Domain     string
	IsProvider bool

	existing       *models.Contact
	existingLoaded bool
}

func newSubject(cand *intake.Candidate, providers ProviderSet) *Subject {
	s := &Subject{
		Candidate: cand,
		Email:     email.Normalize(cand.Info.Email),
	}
	s.Domain = email.ExtractDomain(s.Email)
	s.IsProvider = providers.IsProvider(s.Domain)
	return s
}
