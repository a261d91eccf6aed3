package metrics

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/foxzi/campaigner/internal/models"
)

// StateProvider exposes the stored state the collector turns into gauges
type StateProvider interface {
	ListCampaigns(ctx context.Context) ([]*models.Campaign, error)
	CountSuppressions(ctx context.Context) (int, error)
}

// Collector periodically refreshes gauges while the server runs
type Collector struct {
	metrics   *Metrics
	state     StateProvider
	interval  time.Duration
	startTime time.Time
	logger    *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCollector creates a new metrics collector
func NewCollector(m *Metrics, state StateProvider, interval time.Duration, logger *slog.Logger) *Collector {
	if interval == 0 {
		interval = 30 * time.Second
	}
	return &Collector{
		metrics:   m,
		state:     state,
		interval:  interval,
		startTime: time.Now(),
		logger:    logger.With("component", "metrics_collector"),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the collector background task
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.loop(ctx)
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Collector) loop(ctx context.Context) {
	defer c.wg.Done()

	c.Collect(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Collect updates all gauges once
func (c *Collector) Collect(ctx context.Context) {
	c.metrics.UptimeSeconds.Set(time.Since(c.startTime).Seconds())
	c.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	if c.state == nil {
		return
	}

	if n, err := c.state.CountSuppressions(ctx); err == nil {
		c.metrics.Suppressions.Set(float64(n))
	} else {
		c.logger.Warn("failed to count suppressions", "error", err)
	}

	campaigns, err := c.state.ListCampaigns(ctx)
	if err != nil {
		c.logger.Warn("failed to list campaigns", "error", err)
		return
	}

	counts := map[models.CampaignStatus]int{
		models.CampaignReady:               0,
		models.CampaignSending:             0,
		models.CampaignCompleted:           0,
		models.CampaignCompletedWithErrors: 0,
	}
	for _, cmp := range campaigns {
		counts[cmp.Status]++
	}
	for status, n := range counts {
		c.metrics.CampaignsByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
}
