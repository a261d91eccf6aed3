package models

import "time"

// CampaignStatus is the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignReady               CampaignStatus = "ready"
	CampaignSending             CampaignStatus = "sending"
	CampaignCompleted           CampaignStatus = "completed"
	CampaignCompletedWithErrors CampaignStatus = "completed_with_errors"
)

// IsTerminal reports whether no further dispatch is possible
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignCompleted || s == CampaignCompletedWithErrors
}

// Campaign is a named, one-time batch of recipients.
// Recipients is set once at creation and never changes afterwards.
type Campaign struct {
	Name            string         `json:"name" bson:"name"`
	CreatedDate     time.Time      `json:"created_date" bson:"created_date"`
	Status          CampaignStatus `json:"status" bson:"status"`
	Recipients      []string       `json:"recipients" bson:"recipients"`
	TotalRecipients int            `json:"total_recipients" bson:"total_recipients"`
	ValidationStats *AssemblyStats `json:"validation_stats,omitempty" bson:"validation_stats,omitempty"`
	CompletedDate   *time.Time     `json:"completed_date,omitempty" bson:"completed_date,omitempty"`
	Statistics      *DispatchStats `json:"statistics,omitempty" bson:"statistics,omitempty"`
}

// CampaignUpdate holds the fields that may change after creation
type CampaignUpdate struct {
	Status        CampaignStatus
	CompletedDate *time.Time
	Statistics    *DispatchStats
}

// Rejection is one candidate refused during assembly
type Rejection struct {
	Index  int    `json:"index" bson:"index"`
	Email  string `json:"email,omitempty" bson:"email,omitempty"`
	Reason string `json:"reason" bson:"reason"`
}

// AssemblyStats is the validation report of a campaign assembly run
type AssemblyStats struct {
	TotalProcessed   int            `json:"total_processed" bson:"total_processed"`
	Accepted         int            `json:"accepted" bson:"accepted"`
	NewToMaster      int            `json:"new_to_master" bson:"new_to_master"`
	ExistingInMaster int            `json:"existing_in_master" bson:"existing_in_master"`
	ProviderDomain   int            `json:"provider_domain" bson:"provider_domain"`
	BusinessDomain   int            `json:"business_domain" bson:"business_domain"`
	Rejected         map[string]int `json:"rejected" bson:"rejected"`
	Rejections       []Rejection    `json:"rejections,omitempty" bson:"rejections,omitempty"`
	Created          bool           `json:"created" bson:"created"`
}

// DispatchStats is the aggregate outcome of a dispatch run
type DispatchStats struct {
	Total                   int `json:"total" bson:"total"`
	Sent                    int `json:"sent" bson:"sent"`
	Failed                  int `json:"failed" bson:"failed"`
	Skipped                 int `json:"skipped" bson:"skipped"`
	InvalidEmail            int `json:"invalid_email" bson:"invalid_email"`
	SkippedSuppressed       int `json:"skipped_suppressed" bson:"skipped_suppressed"`
	SkippedExistingCustomer int `json:"skipped_existing_customer" bson:"skipped_existing_customer"`
	SkippedDomainPolicy     int `json:"skipped_domain_policy" bson:"skipped_domain_policy"`
	SkippedFrequency        int `json:"skipped_frequency" bson:"skipped_frequency"`
}
