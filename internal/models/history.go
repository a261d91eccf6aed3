package models

import "time"

// HistoryStatus is the outcome of one send attempt
type HistoryStatus string

const (
	HistorySent    HistoryStatus = "sent"
	HistorySkipped HistoryStatus = "skipped"
	HistoryFailed  HistoryStatus = "failed"
)

// HistoryRecord is an append-only log entry of a send attempt
type HistoryRecord struct {
	ID           string        `json:"id" bson:"_id"`
	ContactEmail string        `json:"contact_email" bson:"contact_email"`
	Domain       string        `json:"domain,omitempty" bson:"domain,omitempty"`
	CampaignName string        `json:"campaign_id" bson:"campaign_id"`
	SentDate     time.Time     `json:"sent_date" bson:"sent_date"`
	Status       HistoryStatus `json:"status" bson:"status"`
	Error        string        `json:"error,omitempty" bson:"error,omitempty"`
}

// SuppressionEntry mirrors one address of the provider's opt-out list
type SuppressionEntry struct {
	Email    string    `json:"email" bson:"email"`
	SyncedAt time.Time `json:"synced_at" bson:"synced_at"`
	Source   string    `json:"source" bson:"source"`
}
