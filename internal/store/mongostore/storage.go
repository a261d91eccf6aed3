// Package mongostore implements store.Store on MongoDB, using the same
// collection names and document shapes as the bolt backend.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/store"
)

const (
	collContacts      = "contacts"
	collCustomers     = "existing_customers"
	collProviders     = "provider_domains"
	collCampaigns     = "campaigns"
	collHistory       = "email_history"
	collSuppressions  = "unsubscribes"
	defaultOpTimeout  = 10 * time.Second
	defaultDatabase   = "email_campaigns"
	connectionTimeout = 10 * time.Second
)

var _ store.Store = (*Storage)(nil)

// Storage implements store.Store using MongoDB
type Storage struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri and selects database (defaulting to email_campaigns)
func Open(ctx context.Context, uri, database string) (*Storage, error) {
	if database == "" {
		database = defaultDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Storage{client: client, db: client.Database(database)}, nil
}

// Init creates the unique and lookup indexes
func (s *Storage) Init(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collContacts: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "domain", Value: 1}}},
		},
		collCustomers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "domain", Value: 1}}},
		},
		collProviders: {
			{Keys: bson.D{{Key: "domain", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collCampaigns: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collHistory: {
			{Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "sent_date", Value: 1}}},
			{Keys: bson.D{{Key: "domain", Value: 1}, {Key: "status", Value: 1}, {Key: "sent_date", Value: -1}}},
		},
		collSuppressions: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, idx := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// Close disconnects the client
func (s *Storage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database; used by tests
func (s *Storage) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

// GetContact retrieves a contact by normalized email
func (s *Storage) GetContact(ctx context.Context, email string) (*models.Contact, error) {
	var c models.Contact
	if err := s.findOne(ctx, collContacts, bson.M{"email": email}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertContact inserts a contact or refreshes its descriptive fields,
// leaving last_email_sent and added_date of existing documents untouched
func (s *Storage) UpsertContact(ctx context.Context, c *models.Contact) (store.UpsertResult, error) {
	set := bson.M{
		"domain":             c.Domain,
		"is_provider_domain": c.IsProviderDomain,
		"business_name":      c.BusinessName,
		"first_name":         c.FirstName,
		"surname":            c.Surname,
		"url":                c.URL,
		"active":             c.Active,
	}
	if c.OriginalData != nil {
		set["original_data"] = c.OriginalData
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"added_date":      c.AddedDate,
			"last_email_sent": c.LastEmailSent,
		},
	}

	res, err := s.db.Collection(collContacts).UpdateOne(ctx,
		bson.M{"email": c.Email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("failed to upsert contact: %w", err)
	}

	return store.UpsertResult{
		Inserted: res.UpsertedCount > 0,
		Modified: res.ModifiedCount > 0,
	}, nil
}

// ContactsByDomain returns the active contacts registered for a domain
func (s *Storage) ContactsByDomain(ctx context.Context, domain string) ([]*models.Contact, error) {
	var out []*models.Contact
	if err := s.findAll(ctx, collContacts, bson.M{"domain": domain, "active": true}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetLastEmailSent records the time of the latest successful send
func (s *Storage) SetLastEmailSent(ctx context.Context, email string, at time.Time) error {
	res, err := s.db.Collection(collContacts).UpdateOne(ctx,
		bson.M{"email": email}, bson.M{"$set": bson.M{"last_email_sent": at.UTC()}})
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// BackdateLastEmailSent moves every recorded send timestamp to at
func (s *Storage) BackdateLastEmailSent(ctx context.Context, at time.Time) (int, error) {
	res, err := s.db.Collection(collContacts).UpdateMany(ctx,
		bson.M{"last_email_sent": bson.M{"$ne": nil}},
		bson.M{"$set": bson.M{"last_email_sent": at.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to backdate contacts: %w", err)
	}
	return int(res.ModifiedCount), nil
}

// IsCustomer reports whether the email or its domain is an existing customer
func (s *Storage) IsCustomer(ctx context.Context, email, domain string) (bool, error) {
	var or bson.A
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if domain != "" {
		or = append(or, bson.M{"domain": domain})
	}
	if len(or) == 0 {
		return false, nil
	}
	return s.exists(ctx, collCustomers, bson.M{"$or": or})
}

// HasCustomerDomain reports whether any existing customer uses domain
func (s *Storage) HasCustomerDomain(ctx context.Context, domain string) (bool, error) {
	return s.exists(ctx, collCustomers, bson.M{"domain": domain})
}

// AddCustomers inserts customers whose email is not yet present
func (s *Storage) AddCustomers(ctx context.Context, customers []*models.ExistingCustomer) (int, error) {
	inserted := 0
	coll := s.db.Collection(collCustomers)
	for _, c := range customers {
		res, err := coll.UpdateOne(ctx, bson.M{"email": c.Email},
			bson.M{"$setOnInsert": c}, options.Update().SetUpsert(true))
		if err != nil {
			return inserted, fmt.Errorf("failed to insert customer: %w", err)
		}
		if res.UpsertedCount > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// ListProviderDomains returns all known provider domains, sorted
func (s *Storage) ListProviderDomains(ctx context.Context) ([]string, error) {
	var docs []models.ProviderDomain
	opts := options.Find().SetSort(bson.D{{Key: "domain", Value: 1}})
	if err := s.findAll(ctx, collProviders, bson.M{}, opts, &docs); err != nil {
		return nil, err
	}

	domains := make([]string, 0, len(docs))
	for _, d := range docs {
		domains = append(domains, d.Domain)
	}
	return domains, nil
}

// AddProviderDomains inserts domains not yet present
func (s *Storage) AddProviderDomains(ctx context.Context, domains []string) (int, error) {
	inserted := 0
	coll := s.db.Collection(collProviders)
	for _, d := range domains {
		if d == "" {
			continue
		}
		res, err := coll.UpdateOne(ctx, bson.M{"domain": d},
			bson.M{"$setOnInsert": bson.M{"domain": d}}, options.Update().SetUpsert(true))
		if err != nil {
			return inserted, fmt.Errorf("failed to insert provider domain: %w", err)
		}
		if res.UpsertedCount > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// GetCampaign retrieves a campaign by name
func (s *Storage) GetCampaign(ctx context.Context, name string) (*models.Campaign, error) {
	var c models.Campaign
	if err := s.findOne(ctx, collCampaigns, bson.M{"name": name}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCampaign inserts a new campaign; the unique index rejects reused names
func (s *Storage) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	_, err := s.db.Collection(collCampaigns).InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}
	return nil
}

// UpdateCampaign changes the mutable part of a campaign
func (s *Storage) UpdateCampaign(ctx context.Context, name string, u models.CampaignUpdate) error {
	set := bson.M{}
	if u.Status != "" {
		set["status"] = u.Status
	}
	if u.CompletedDate != nil {
		set["completed_date"] = u.CompletedDate.UTC()
	}
	if u.Statistics != nil {
		set["statistics"] = u.Statistics
	}

	res, err := s.db.Collection(collCampaigns).UpdateOne(ctx, bson.M{"name": name}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListCampaigns returns all campaigns, newest first
func (s *Storage) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	var out []*models.Campaign
	opts := options.Find().SetSort(bson.D{{Key: "created_date", Value: -1}})
	if err := s.findAll(ctx, collCampaigns, bson.M{}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAllCampaigns removes every campaign document
func (s *Storage) DeleteAllCampaigns(ctx context.Context) (int, error) {
	res, err := s.db.Collection(collCampaigns).DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete campaigns: %w", err)
	}
	return int(res.DeletedCount), nil
}

// CountCampaigns returns the number of stored campaigns
func (s *Storage) CountCampaigns(ctx context.Context) (int, error) {
	n, err := s.db.Collection(collCampaigns).CountDocuments(ctx, bson.M{})
	return int(n), err
}

// AppendHistory adds a send attempt to the log
func (s *Storage) AppendHistory(ctx context.Context, rec *models.HistoryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if _, err := s.db.Collection(collHistory).InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}

// LatestSentForDomain returns the newest successful send to any address of domain
func (s *Storage) LatestSentForDomain(ctx context.Context, domain string) (*time.Time, error) {
	var rec models.HistoryRecord
	opts := options.FindOne().SetSort(bson.D{{Key: "sent_date", Value: -1}})
	err := s.db.Collection(collHistory).FindOne(ctx,
		bson.M{"domain": domain, "status": models.HistorySent}, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return &rec.SentDate, nil
}

// ListHistory returns the history of a campaign in chronological order
func (s *Storage) ListHistory(ctx context.Context, campaignName string) ([]*models.HistoryRecord, error) {
	var out []*models.HistoryRecord
	opts := options.Find().SetSort(bson.D{{Key: "sent_date", Value: 1}})
	if err := s.findAll(ctx, collHistory, bson.M{"campaign_id": campaignName}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsSuppressed reports whether email is on the mirrored opt-out list
func (s *Storage) IsSuppressed(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, collSuppressions, bson.M{"email": email})
}

// ListSuppressed returns every mirrored address
func (s *Storage) ListSuppressed(ctx context.Context) ([]string, error) {
	var docs []models.SuppressionEntry
	if err := s.findAll(ctx, collSuppressions, bson.M{}, nil, &docs); err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(docs))
	for _, d := range docs {
		emails = append(emails, d.Email)
	}
	return emails, nil
}

// AddSuppressions inserts entries that are not yet mirrored
func (s *Storage) AddSuppressions(ctx context.Context, entries []*models.SuppressionEntry) (int, error) {
	inserted := 0
	coll := s.db.Collection(collSuppressions)
	for _, e := range entries {
		res, err := coll.UpdateOne(ctx, bson.M{"email": e.Email},
			bson.M{"$setOnInsert": e}, options.Update().SetUpsert(true))
		if err != nil {
			return inserted, fmt.Errorf("failed to insert suppression: %w", err)
		}
		if res.UpsertedCount > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// RemoveSuppressions deletes the given addresses from the mirror
func (s *Storage) RemoveSuppressions(ctx context.Context, emails []string) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	res, err := s.db.Collection(collSuppressions).DeleteMany(ctx, bson.M{"email": bson.M{"$in": emails}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete suppressions: %w", err)
	}
	return int(res.DeletedCount), nil
}

// CountSuppressions returns the mirror size
func (s *Storage) CountSuppressions(ctx context.Context) (int, error) {
	n, err := s.db.Collection(collSuppressions).CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (s *Storage) findOne(ctx context.Context, coll string, filter bson.M, v any) error {
	err := s.db.Collection(coll).FindOne(ctx, filter).Decode(v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", coll, err)
	}
	return nil
}

func (s *Storage) findAll(ctx context.Context, coll string, filter bson.M, opts *options.FindOptions, v any) error {
	if opts == nil {
		opts = options.Find()
	}
	cur, err := s.db.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", coll, err)
	}
	if err := cur.All(ctx, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", coll, err)
	}
	return nil
}

func (s *Storage) exists(ctx context.Context, coll string, filter bson.M) (bool, error) {
	n, err := s.db.Collection(coll).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", coll, err)
	}
	return n > 0, nil
}
