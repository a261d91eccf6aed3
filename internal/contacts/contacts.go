// Package contacts maintains the master contact list and the reference
// sets (provider domains, existing customers) the qualifier reads.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxzi/campaigner/internal/email"
	"github.com/foxzi/campaigner/internal/intake"
	"github.com/foxzi/campaigner/internal/logging"
	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/qualify"
	"github.com/foxzi/campaigner/internal/store"
)

// Store is the store surface used by the contact tools
type Store interface {
	UpsertContact(ctx context.Context, c *models.Contact) (store.UpsertResult, error)
	BackdateLastEmailSent(ctx context.Context, at time.Time) (int, error)
	ListProviderDomains(ctx context.Context) ([]string, error)
	AddProviderDomains(ctx context.Context, domains []string) (int, error)
	AddCustomers(ctx context.Context, customers []*models.ExistingCustomer) (int, error)
}

// Service runs imports into the master list
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a contact service
func NewService(st Store, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logging.Discard(logger).With("component", "contacts"),
		now:    time.Now,
	}
}

// Import upserts every record with an email into the master list. Unlike
// campaign assembly it applies no business rules beyond address validity.
func (s *Service) Import(ctx context.Context, records []intake.Record) (*models.ImportStats, error) {
	providers, err := qualify.LoadProviderSet(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider domains: %w", err)
	}

	stats := &models.ImportStats{}
	now := s.now().UTC()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++

		cand, err := rec.Decode()
		if err != nil {
			s.logger.Warn("skipping malformed record", "index", rec.Index, "error", err)
			stats.Errors++
			continue
		}

		addr := email.Normalize(cand.Info.Email)
		if addr == "" {
			stats.SkippedNoEmail++
			continue
		}
		domain, ok := email.Check(addr)
		if !ok {
			s.logger.Debug("skipping invalid address", "index", rec.Index, "email", addr)
			stats.InvalidEmail++
			continue
		}

		res, err := s.store.UpsertContact(ctx, &models.Contact{
			Email:            addr,
			Domain:           domain,
			IsProviderDomain: providers.IsProvider(domain),
			BusinessName:     cand.Info.BusinessName,
			FirstName:        cand.Info.FirstName,
			Surname:          cand.Info.Surname,
			URL:              cand.URL,
			OriginalData:     cand.Original,
			AddedDate:        now,
			Active:           true,
		})
		if err != nil {
			s.logger.Warn("failed to upsert contact", "index", rec.Index, "email", addr, "error", err)
			stats.Errors++
			continue
		}

		switch {
		case res.Inserted:
			stats.Imported++
		case res.Modified:
			stats.Updated++
		}
	}

	s.logger.Info("contact import finished",
		"processed", stats.Processed,
		"imported", stats.Imported,
		"updated", stats.Updated,
		"skipped_no_email", stats.SkippedNoEmail,
		"invalid_email", stats.InvalidEmail,
		"errors", stats.Errors,
	)
	return stats, nil
}

// Backdate sets last_email_sent to days ago on every contact that has one.
// It exists to rehearse dispatch runs against the cooldown.
func (s *Service) Backdate(ctx context.Context, days int) (int, error) {
	if days < 0 {
		return 0, fmt.Errorf("days must not be negative, got %d", days)
	}
	at := s.now().UTC().AddDate(0, 0, -days)

	n, err := s.store.BackdateLastEmailSent(ctx, at)
	if err != nil {
		return 0, fmt.Errorf("failed to backdate contacts: %w", err)
	}

	s.logger.Info("last_email_sent backdated", "contacts", n, "to", at)
	return n, nil
}
