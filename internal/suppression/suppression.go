// Package suppression mirrors a provider's opt-out list into the local store.
// The provider is authoritative: entries it no longer reports are removed.
package suppression

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/foxzi/campaigner/internal/email"
	"github.com/foxzi/campaigner/internal/logging"
	"github.com/foxzi/campaigner/internal/metrics"
	"github.com/foxzi/campaigner/internal/models"
)

// Source fetches the complete upstream opt-out list
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]string, error)
}

// Store is the local mirror
type Store interface {
	ListSuppressed(ctx context.Context) ([]string, error)
	AddSuppressions(ctx context.Context, entries []*models.SuppressionEntry) (int, error)
	RemoveSuppressions(ctx context.Context, emails []string) (int, error)
	CountSuppressions(ctx context.Context) (int, error)
}

// Result summarizes one sync
type Result struct {
	Upstream int `json:"upstream"`
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Total    int `json:"total"`
}

// Syncer replaces the mirror with the upstream list
type Syncer struct {
	source Source
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewSyncer creates a syncer
func NewSyncer(source Source, st Store, logger *slog.Logger) *Syncer {
	return &Syncer{
		source: source,
		store:  st,
		logger: logging.Discard(logger).With("component", "suppression"),
		now:    time.Now,
	}
}

// Sync fetches upstream, then adds and removes the difference. A fetch
// failure leaves the mirror untouched.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	fetched, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s suppressions: %w", s.source.Name(), err)
	}

	upstream := make(map[string]struct{}, len(fetched))
	for _, addr := range fetched {
		if addr = email.Normalize(addr); addr != "" {
			upstream[addr] = struct{}{}
		}
	}

	current, err := s.store.ListSuppressed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mirror: %w", err)
	}
	mirror := make(map[string]struct{}, len(current))
	for _, addr := range current {
		mirror[addr] = struct{}{}
	}

	syncedAt := s.now().UTC()
	var toAdd []*models.SuppressionEntry
	for addr := range upstream {
		if _, ok := mirror[addr]; !ok {
			toAdd = append(toAdd, &models.SuppressionEntry{Email: addr, SyncedAt: syncedAt, Source: s.source.Name()})
		}
	}
	var toRemove []string
	for addr := range mirror {
		if _, ok := upstream[addr]; !ok {
			toRemove = append(toRemove, addr)
		}
	}
	sort.Slice(toAdd, func(i, j int) bool { return toAdd[i].Email < toAdd[j].Email })
	sort.Strings(toRemove)

	res := &Result{Upstream: len(upstream)}

	if len(toAdd) > 0 {
		if res.Added, err = s.store.AddSuppressions(ctx, toAdd); err != nil {
			return nil, fmt.Errorf("failed to add suppressions: %w", err)
		}
		s.logger.Info("suppressions added", "count", res.Added)
	}
	if len(toRemove) > 0 {
		if res.Removed, err = s.store.RemoveSuppressions(ctx, toRemove); err != nil {
			return nil, fmt.Errorf("failed to remove suppressions: %w", err)
		}
		s.logger.Info("stale suppressions removed", "count", res.Removed)
	}

	if res.Total, err = s.store.CountSuppressions(ctx); err != nil {
		return nil, fmt.Errorf("failed to count suppressions: %w", err)
	}
	metrics.SetSuppressions(res.Total)
	metrics.MarkRun("suppression_sync")

	s.logger.Info("sync complete",
		"source", s.source.Name(),
		"upstream", res.Upstream,
		"total", res.Total,
	)
	return res, nil
}
