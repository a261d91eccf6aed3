package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/foxzi/campaigner/internal/logging"
	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/store"
)

// Repository is the store surface for reading and purging campaigns
type Repository interface {
	GetCampaign(ctx context.Context, name string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*models.Campaign, error)
	ListHistory(ctx context.Context, campaignName string) ([]*models.HistoryRecord, error)
	DeleteAllCampaigns(ctx context.Context) (int, error)
	CountCampaigns(ctx context.Context) (int, error)
}

// Service serves campaign lookups for the CLI and API
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a campaign service backed by the given repository
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logging.Discard(logger).With("component", "campaigns"),
	}
}

// Get returns a single campaign
func (s *Service) Get(ctx context.Context, name string) (*models.Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, name)
	}
	return c, err
}

// List returns all campaigns, newest first
func (s *Service) List(ctx context.Context) ([]*models.Campaign, error) {
	return s.repo.ListCampaigns(ctx)
}

// History returns the send log of a campaign
func (s *Service) History(ctx context.Context, name string) ([]*models.HistoryRecord, error) {
	if _, err := s.Get(ctx, name); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, name)
}

// Count returns the number of campaigns
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.CountCampaigns(ctx)
}

// Purge deletes every campaign. History and contacts are kept. A non-empty
// collection after the delete is logged, not returned as an error.
func (s *Service) Purge(ctx context.Context) (int, error) {
	deleted, err := s.repo.DeleteAllCampaigns(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete campaigns: %w", err)
	}

	remaining, err := s.repo.CountCampaigns(ctx)
	if err != nil {
		s.logger.Error("failed to verify campaign purge", "error", err)
	} else if remaining > 0 {
		s.logger.Error("campaigns remain after purge", "remaining", remaining)
	}

	s.logger.Info("campaigns purged", "deleted", deleted)
	return deleted, nil
}
