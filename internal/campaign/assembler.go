package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxzi/campaigner/internal/intake"
	"github.com/foxzi/campaigner/internal/logging"
	"github.com/foxzi/campaigner/internal/metrics"
	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/qualify"
	"github.com/foxzi/campaigner/internal/store"
)

// AssemblyStore is the store surface used while building a campaign
type AssemblyStore interface {
	qualify.Store
	UpsertContact(ctx context.Context, c *models.Contact) (store.UpsertResult, error)
	AddCustomers(ctx context.Context, customers []*models.ExistingCustomer) (int, error)
	ListProviderDomains(ctx context.Context) ([]string, error)
	GetCampaign(ctx context.Context, name string) (*models.Campaign, error)
	CreateCampaign(ctx context.Context, c *models.Campaign) error
}

// Assembler turns a candidate file into a ready campaign
type Assembler struct {
	store     AssemblyStore
	qualifier *qualify.Qualifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewAssembler creates an assembler
func NewAssembler(st AssemblyStore, q *qualify.Qualifier, logger *slog.Logger) *Assembler {
	return &Assembler{
		store:     st,
		qualifier: q,
		logger:    logging.Discard(logger).With("component", "assembler"),
		now:       time.Now,
	}
}

// Assemble qualifies records in input order and, if any are admitted,
// creates campaign name in status ready. Campaign names are single-use:
// an existing name fails with ErrCampaignExists before anything is written.
func (a *Assembler) Assemble(ctx context.Context, name string, records []intake.Record) (*models.AssemblyStats, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	_, err := a.store.GetCampaign(ctx, name)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrCampaignExists, name)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up campaign: %w", err)
	}

	providers, err := qualify.LoadProviderSet(ctx, a.store)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider domains: %w", err)
	}

	start := a.now().UTC()
	rc := qualify.NewRunContext(providers, a.store, start)
	stats := &models.AssemblyStats{Rejected: make(map[string]int)}
	var recipients []string

	reject := func(rec intake.Record, addr string, reason qualify.Reason) {
		stats.Rejected[string(reason)]++
		stats.Rejections = append(stats.Rejections, models.Rejection{
			Index:  rec.Index,
			Email:  addr,
			Reason: string(reason),
		})
		metrics.IncRejection(string(reason))
		a.logger.Debug("candidate rejected", "index", rec.Index, "email", addr, "reason", reason)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats.TotalProcessed++

		cand, err := rec.Decode()
		if err != nil {
			reject(rec, "", qualify.ReasonMalformedRecord)
			continue
		}

		decision, reason, err := a.qualifier.Qualify(ctx, rc, cand)
		if err != nil {
			a.logger.Warn("failed to qualify candidate", "index", rec.Index, "email", cand.Info.Email, "error", err)
			reject(rec, cand.Info.Email, qualify.ReasonProcessingError)
			continue
		}
		if reason != "" {
			reject(rec, cand.Info.Email, reason)
			continue
		}

		if err := a.apply(ctx, decision); err != nil {
			a.logger.Warn("failed to store candidate", "index", rec.Index, "email", decision.Contact.Email, "error", err)
			reject(rec, cand.Info.Email, qualify.ReasonProcessingError)
			continue
		}

		rc.Admit(decision.Contact)
		recipients = append(recipients, decision.Contact.Email)
		metrics.IncCandidate("accepted")

		stats.Accepted++
		if decision.NewToMaster {
			stats.NewToMaster++
		} else {
			stats.ExistingInMaster++
		}
		if decision.Contact.IsProviderDomain {
			stats.ProviderDomain++
		} else {
			stats.BusinessDomain++
		}
	}

	if len(recipients) == 0 {
		a.logger.Warn("no recipients admitted, campaign not created",
			"campaign", name,
			"processed", stats.TotalProcessed,
		)
		return stats, nil
	}

	c := &models.Campaign{
		Name:            name,
		CreatedDate:     start,
		Status:          models.CampaignReady,
		Recipients:      recipients,
		TotalRecipients: len(recipients),
		ValidationStats: stats,
	}
	stats.Created = true
	if err := a.store.CreateCampaign(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrCampaignExists, name)
		}
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	a.logger.Info("campaign created",
		"campaign", name,
		"processed", stats.TotalProcessed,
		"recipients", len(recipients),
		"new_to_master", stats.NewToMaster,
		"rejected", len(stats.Rejections),
	)

	return stats, nil
}

// apply performs the writes staged by an admission decision
func (a *Assembler) apply(ctx context.Context, d *qualify.Decision) error {
	if _, err := a.store.UpsertContact(ctx, d.Contact); err != nil {
		return err
	}
	if d.RegisterCustomer != nil {
		if _, err := a.store.AddCustomers(ctx, []*models.ExistingCustomer{d.RegisterCustomer}); err != nil {
			return err
		}
	}
	return nil
}
