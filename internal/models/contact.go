package models

import "time"

// Contact is a master-list entry keyed by normalized email
type Contact struct {
	Email            string         `json:"email" bson:"email"`
	Domain           string         `json:"domain" bson:"domain"`
	IsProviderDomain bool           `json:"is_provider_domain" bson:"is_provider_domain"`
	BusinessName     string         `json:"business_name,omitempty" bson:"business_name,omitempty"`
	FirstName        string         `json:"first_name,omitempty" bson:"first_name,omitempty"`
	Surname          string         `json:"surname,omitempty" bson:"surname,omitempty"`
	URL              string         `json:"url,omitempty" bson:"url,omitempty"`
	OriginalData     map[string]any `json:"original_data,omitempty" bson:"original_data,omitempty"`
	LastEmailSent    *time.Time     `json:"last_email_sent" bson:"last_email_sent"`
	AddedDate        time.Time      `json:"added_date" bson:"added_date"`
	Active           bool           `json:"active" bson:"active"`
}

// ExistingCustomer is an address whose email or domain must not be mailed
// under the customer-exclusion policy, or a known business domain under the
// known-business dispatch policy
type ExistingCustomer struct {
	Email     string    `json:"email" bson:"email"`
	Domain    string    `json:"domain" bson:"domain"`
	Source    string    `json:"source,omitempty" bson:"source,omitempty"` // import, qualification
	AddedDate time.Time `json:"added_date" bson:"added_date"`
}

// ProviderDomain is a public/free mailbox provider domain
type ProviderDomain struct {
	Domain string `json:"domain" bson:"domain"`
}

// ImportStats summarizes a master contact import
type ImportStats struct {
	Processed      int `json:"processed"`
	Imported       int `json:"imported"`
	Updated        int `json:"updated"`
	SkippedNoEmail int `json:"skipped_no_email"`
	InvalidEmail   int `json:"invalid_email"`
	Errors         int `json:"errors"`
}
