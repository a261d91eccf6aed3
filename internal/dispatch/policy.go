package dispatch

import "time"

// Mode selects who may receive a send
type Mode string

const (
	// ExcludeCustomers skips existing customers by email or domain
	ExcludeCustomers Mode = "exclude_customers"
	// KnownBusinessOnly sends only to non-provider domains present in the
	// existing-customer set
	KnownBusinessOnly Mode = "known_business_only"
)

// Scope selects what the frequency cooldown is measured against
type Scope string

const (
	// ScopeContact uses the contact's last_email_sent
	ScopeContact Scope = "contact"
	// ScopeDomain uses the newest sent history entry for the whole domain
	ScopeDomain Scope = "domain"
)

// Skip and failure reasons recorded in the send history
const (
	ReasonInvalidEmail          = "invalid_email_format"
	ReasonSuppressed            = "suppressed"
	ReasonExistingCustomer      = "existing_customer"
	ReasonProviderDomain        = "provider_domain"
	ReasonUnknownBusinessDomain = "unknown_business_domain"
	ReasonFrequencyLimit        = "frequency_limit"
	ReasonLookupError           = "lookup_error"
	ReasonRenderError           = "render_error"
	ReasonTransportError        = "transport_error"
	ReasonEmptyResult           = "empty_transport_result"
)

// Policy holds the per-recipient send rules
type Policy struct {
	Mode     Mode
	Cooldown time.Duration
	Scope    Scope
}
