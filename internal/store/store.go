// Package store defines the document-store contract used by the campaign
// engine. Backends live in the bolt and mongo subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/foxzi/campaigner/internal/models"
)

var (
	// ErrNotFound is returned when a keyed document does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by insert-only operations on an existing key
	ErrDuplicate = errors.New("duplicate key")
)

// UpsertResult reports what an upsert did
type UpsertResult struct {
	Inserted bool
	Modified bool
}

// Contacts is the master contact list keyed by normalized email
type Contacts interface {
	// GetContact returns ErrNotFound if the email is unknown
	GetContact(ctx context.Context, email string) (*models.Contact, error)

	// UpsertContact inserts the contact or refreshes its descriptive fields.
	// LastEmailSent and AddedDate of an existing contact are preserved.
	UpsertContact(ctx context.Context, c *models.Contact) (UpsertResult, error)

	// ContactsByDomain returns active contacts of a domain
	ContactsByDomain(ctx context.Context, domain string) ([]*models.Contact, error)

	// SetLastEmailSent returns ErrNotFound if the contact does not exist
	SetLastEmailSent(ctx context.Context, email string, at time.Time) error

	// BackdateLastEmailSent rewrites last_email_sent on every contact that
	// has one and returns the number of contacts touched
	BackdateLastEmailSent(ctx context.Context, at time.Time) (int, error)
}

// Customers is the existing-customer exclusion set
type Customers interface {
	// IsCustomer reports whether the email or the domain is present
	IsCustomer(ctx context.Context, email, domain string) (bool, error)
	HasCustomerDomain(ctx context.Context, domain string) (bool, error)
	// AddCustomers inserts entries, ignoring emails already present, and
	// returns the number inserted
	AddCustomers(ctx context.Context, customers []*models.ExistingCustomer) (int, error)
}

// ProviderDomains is the reference set of public mailbox providers
type ProviderDomains interface {
	ListProviderDomains(ctx context.Context) ([]string, error)
	AddProviderDomains(ctx context.Context, domains []string) (int, error)
}

// Campaigns stores campaign documents keyed by name
type Campaigns interface {
	// GetCampaign returns ErrNotFound if absent
	GetCampaign(ctx context.Context, name string) (*models.Campaign, error)
	// CreateCampaign is insert-only and returns ErrDuplicate if the name exists
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	// UpdateCampaign applies status/completion/statistics; recipients are never touched
	UpdateCampaign(ctx context.Context, name string, u models.CampaignUpdate) error
	ListCampaigns(ctx context.Context) ([]*models.Campaign, error)
	DeleteAllCampaigns(ctx context.Context) (int, error)
	CountCampaigns(ctx context.Context) (int, error)
}

// History is the append-only send log
type History interface {
	AppendHistory(ctx context.Context, rec *models.HistoryRecord) error
	// LatestSentForDomain returns the newest "sent" timestamp for a domain,
	// or nil if nothing was ever sent there
	LatestSentForDomain(ctx context.Context, domain string) (*time.Time, error)
	ListHistory(ctx context.Context, campaignName string) ([]*models.HistoryRecord, error)
}

// Suppressions is the local mirror of the provider opt-out list
type Suppressions interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
	ListSuppressed(ctx context.Context) ([]string, error)
	AddSuppressions(ctx context.Context, entries []*models.SuppressionEntry) (int, error)
	RemoveSuppressions(ctx context.Context, emails []string) (int, error)
	CountSuppressions(ctx context.Context) (int, error)
}

// Store is the full document store
type Store interface {
	Contacts
	Customers
	ProviderDomains
	Campaigns
	History
	Suppressions

	// Init creates collections and indexes; safe to call repeatedly
	Init(ctx context.Context) error
	Close() error
}
