package qualify

import (
	"context"

	"github.com/foxzi/campaigner/internal/email"
)

// Rule is one admission predicate. Check returns false to reject the
// subject with Reason.
type Rule struct {
	Reason Reason
	Check  func(ctx context.Context, rc *RunContext, s *Subject) (bool, error)
}

// Rules returns the ordered chain for policy
func Rules(p Policy) []Rule {
	rules := []Rule{
		{ReasonMissingEmail, hasEmail},
		{ReasonInvalidEmail, validEmail},
		{ReasonInvalidDomain, validDomain},
		{ReasonCampaignDuplicate, notSeen},
	}

	if p.CustomerExclusion != ExcludeDomainOnly {
		rules = append(rules, Rule{ReasonExistingCustomer, notCustomer})
	}
	if p.Cooldown > 0 {
		rules = append(rules, Rule{ReasonRecentlyContacted, cooledDown(p)})
	}

	return append(rules, Rule{ReasonBusinessDomainConflict, domainAvailable(p)})
}

func hasEmail(_ context.Context, _ *RunContext, s *Subject) (bool, error) {
	return s.Email != "", nil
}

func validEmail(_ context.Context, _ *RunContext, s *Subject) (bool, error) {
	return email.IsValid(s.Email), nil
}

func validDomain(_ context.Context, _ *RunContext, s *Subject) (bool, error) {
	return s.Domain != "", nil
}

func notSeen(_ context.Context, rc *RunContext, s *Subject) (bool, error) {
	return !rc.Seen(s.Email), nil
}

func notCustomer(ctx context.Context, rc *RunContext, s *Subject) (bool, error) {
	customer, err := rc.Store.IsCustomer(ctx, s.Email, s.Domain)
	return !customer, err
}

func cooledDown(p Policy) func(context.Context, *RunContext, *Subject) (bool, error) {
	return func(ctx context.Context, rc *RunContext, s *Subject) (bool, error) {
		existing, err := s.Existing(ctx, rc)
		if err != nil || existing == nil || existing.LastEmailSent == nil {
			return true, err
		}
		return !existing.LastEmailSent.After(rc.Now.Add(-p.Cooldown)), nil
	}
}

// domainAvailable rations business domains to one contact. Provider domains
// are always exempt. Under domain-only customer exclusion a customer's
// domain counts as already held.
func domainAvailable(p Policy) func(context.Context, *RunContext, *Subject) (bool, error) {
	customerDomains := p.CustomerExclusion == ExcludeDomainOnly

	return func(ctx context.Context, rc *RunContext, s *Subject) (bool, error) {
		if s.IsProvider {
			return true, nil
		}

		if holder, ok := rc.DomainHolder(s.Domain); ok && holder != s.Email {
			return false, nil
		}

		if customerDomains {
			customer, err := rc.Store.HasCustomerDomain(ctx, s.Domain)
			if err != nil {
				return false, err
			}
			if customer {
				return false, nil
			}
		}

		contacts, err := rc.Store.ContactsByDomain(ctx, s.Domain)
		if err != nil {
			return false, err
		}
		for _, c := range contacts {
			if c.Email != s.Email {
				return false, nil
			}
		}
		return true, nil
	}
}
