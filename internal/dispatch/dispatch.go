// Package dispatch sends a ready campaign to its recipients, re-checking
// each one against current suppression, customer and frequency state.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/foxzi/campaigner/internal/campaign"
	"github.com/foxzi/campaigner/internal/email"
	"github.com/foxzi/campaigner/internal/logging"
	"github.com/foxzi/campaigner/internal/metrics"
	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/qualify"
	"github.com/foxzi/campaigner/internal/store"
	"github.com/foxzi/campaigner/internal/template"
	"github.com/foxzi/campaigner/internal/transport"
)

// Store is the store surface used during a run
type Store interface {
	GetCampaign(ctx context.Context, name string) (*models.Campaign, error)
	UpdateCampaign(ctx context.Context, name string, u models.CampaignUpdate) error
	GetContact(ctx context.Context, email string) (*models.Contact, error)
	SetLastEmailSent(ctx context.Context, email string, at time.Time) error
	IsSuppressed(ctx context.Context, email string) (bool, error)
	IsCustomer(ctx context.Context, email, domain string) (bool, error)
	HasCustomerDomain(ctx context.Context, domain string) (bool, error)
	ListProviderDomains(ctx context.Context) ([]string, error)
	LatestSentForDomain(ctx context.Context, domain string) (*time.Time, error)
	AppendHistory(ctx context.Context, rec *models.HistoryRecord) error
}

// Options configures a Dispatcher
type Options struct {
	Policy   Policy
	From     string
	FromName string
	Vars     map[string]string
	// RatePerSecond paces transport calls; 0 means unpaced
	RatePerSecond float64
}

// Dispatcher runs campaigns one at a time
type Dispatcher struct {
	store   Store
	sender  transport.Sender
	engine  *template.Engine
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a dispatcher
func New(st Store, sender transport.Sender, engine *template.Engine, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.Policy.Mode == "" {
		opts.Policy.Mode = ExcludeCustomers
	}
	if opts.Policy.Scope == "" {
		opts.Policy.Scope = ScopeContact
	}

	d := &Dispatcher{
		store:  st,
		sender: sender,
		engine: engine,
		opts:   opts,
		logger: logging.Discard(logger).With("component", "dispatcher"),
		now:    time.Now,
	}
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return d
}

// outcome is the result of processing one recipient
type outcome struct {
	status models.HistoryStatus
	reason string
}

// run holds the state of one Dispatch call
type run struct {
	campaign  *models.Campaign
	providers qualify.ProviderSet
	cutoff    time.Time
	stats     *models.DispatchStats
}

// Dispatch sends campaign name. Every recipient is attempted exactly once in
// list order; per-recipient failures never stop the run. If ctx is canceled
// the campaign stays in sending and can be dispatched again.
func (d *Dispatcher) Dispatch(ctx context.Context, name string) (*models.DispatchStats, error) {
	if err := campaign.ValidateName(name); err != nil {
		return nil, err
	}

	c, err := d.store.GetCampaign(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", campaign.ErrCampaignNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if !campaign.Dispatchable(c.Status) {
		return nil, fmt.Errorf("%w: %s is %s", campaign.ErrInvalidStatus, name, c.Status)
	}

	stats := &models.DispatchStats{Total: len(c.Recipients)}
	if len(c.Recipients) == 0 {
		d.logger.Warn("campaign has no recipients", "campaign", name)
		return stats, nil
	}

	providers, err := qualify.LoadProviderSet(ctx, d.store)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider domains: %w", err)
	}

	if err := campaign.Transition(c.Status, models.CampaignSending); err != nil {
		return nil, err
	}
	if err := d.store.UpdateCampaign(ctx, name, models.CampaignUpdate{Status: models.CampaignSending}); err != nil {
		return nil, fmt.Errorf("failed to mark campaign sending: %w", err)
	}

	start := d.now().UTC()
	r := &run{
		campaign:  c,
		providers: providers,
		cutoff:    start.Add(-d.opts.Policy.Cooldown),
		stats:     stats,
	}

	d.logger.Info("dispatch started",
		"campaign", name,
		"recipients", len(c.Recipients),
		"transport", d.sender.Name(),
		"policy", d.opts.Policy.Mode,
	)

	for _, recipient := range c.Recipients {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("dispatch interrupted, campaign left in sending",
				"campaign", name,
				"sent", stats.Sent,
				"failed", stats.Failed,
			)
			return stats, err
		}

		addr := email.Normalize(recipient)
		domain := email.ExtractDomain(addr)

		out, err := d.process(ctx, r, addr, domain)
		if err != nil {
			// only pacing returns an error, and only on cancellation
			return stats, err
		}

		d.count(stats, out)
		d.record(ctx, name, addr, domain, out)
	}

	final := campaign.FinalStatus(stats.Failed)
	if err := campaign.Transition(models.CampaignSending, final); err != nil {
		return stats, err
	}
	completed := d.now().UTC()
	err = d.store.UpdateCampaign(ctx, name, models.CampaignUpdate{
		Status:        final,
		CompletedDate: &completed,
		Statistics:    stats,
	})
	if err != nil {
		return stats, fmt.Errorf("failed to complete campaign: %w", err)
	}
	metrics.MarkRun("dispatch")

	d.logger.Info("dispatch finished",
		"campaign", name,
		"status", final,
		"sent", stats.Sent,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"duration", completed.Sub(start),
	)

	return stats, nil
}

// process applies the send rules to one recipient and sends if all pass
func (d *Dispatcher) process(ctx context.Context, r *run, addr, domain string) (outcome, error) {
	if !email.IsValid(addr) || domain == "" {
		return outcome{models.HistoryFailed, ReasonInvalidEmail}, nil
	}

	if reason, err := d.excluded(ctx, r, addr, domain); err != nil {
		d.logger.Warn("recipient lookup failed", "email", addr, "error", err)
		return outcome{models.HistoryFailed, ReasonLookupError}, nil
	} else if reason != "" {
		return outcome{models.HistorySkipped, reason}, nil
	}

	contact, err := d.store.GetContact(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		contact = &models.Contact{Email: addr, Domain: domain}
	} else if err != nil {
		d.logger.Warn("contact lookup failed", "email", addr, "error", err)
		return outcome{models.HistoryFailed, ReasonLookupError}, nil
	}

	recent, err := d.recentlySent(ctx, r, contact)
	if err != nil {
		d.logger.Warn("send time lookup failed", "email", addr, "error", err)
		return outcome{models.HistoryFailed, ReasonLookupError}, nil
	}
	if recent {
		return outcome{models.HistorySkipped, ReasonFrequencyLimit}, nil
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return outcome{}, err
		}
	}

	return d.send(ctx, r, contact), nil
}

// excluded returns the skip reason from suppression, customer and domain policy
func (d *Dispatcher) excluded(ctx context.Context, r *run, addr, domain string) (string, error) {
	suppressed, err := d.store.IsSuppressed(ctx, addr)
	if err != nil {
		return "", err
	}
	if suppressed {
		return ReasonSuppressed, nil
	}

	switch d.opts.Policy.Mode {
	case KnownBusinessOnly:
		if r.providers.IsProvider(domain) {
			return ReasonProviderDomain, nil
		}
		known, err := d.store.HasCustomerDomain(ctx, domain)
		if err != nil {
			return "", err
		}
		if !known {
			return ReasonUnknownBusinessDomain, nil
		}
	default:
		customer, err := d.store.IsCustomer(ctx, addr, domain)
		if err != nil {
			return "", err
		}
		if customer {
			return ReasonExistingCustomer, nil
		}
	}

	return "", nil
}

// recentlySent reports whether the cooldown window still covers the recipient
func (d *Dispatcher) recentlySent(ctx context.Context, r *run, c *models.Contact) (bool, error) {
	if d.opts.Policy.Cooldown <= 0 {
		return false, nil
	}

	last := c.LastEmailSent
	if d.opts.Policy.Scope == ScopeDomain {
		var err error
		if last, err = d.store.LatestSentForDomain(ctx, c.Domain); err != nil {
			return false, err
		}
	}

	return last != nil && last.After(r.cutoff), nil
}

// send renders and hands the message to the transport
func (d *Dispatcher) send(ctx context.Context, r *run, c *models.Contact) outcome {
	rendered, err := d.engine.Render(&template.Data{
		From:     d.opts.From,
		FromName: d.opts.FromName,
		Campaign: r.campaign.Name,
		Contact:  c,
		Vars:     d.opts.Vars,
	})
	if err != nil {
		d.logger.Error("failed to render message", "email", c.Email, "error", err)
		return outcome{models.HistoryFailed, ReasonRenderError}
	}

	started := time.Now()
	res, err := d.deliver(ctx, &transport.Message{
		From:     d.opts.From,
		FromName: d.opts.FromName,
		To:       c.Email,
		Subject:  rendered.Subject,
		HTML:     rendered.HTML,
		Text:     rendered.Text,
		Campaign: r.campaign.Name,
	})
	metrics.ObserveTransport(d.sender.Name(), time.Since(started))

	if err != nil {
		d.logger.Warn("transport error", "email", c.Email, "error", err)
		return outcome{models.HistoryFailed, err.Error()}
	}
	if res == nil {
		d.logger.Warn("transport returned no result", "email", c.Email)
		return outcome{models.HistoryFailed, ReasonEmptyResult}
	}
	if !res.Accepted() {
		d.logger.Warn("message not accepted", "email", c.Email, "status_code", res.StatusCode)
		return outcome{models.HistoryFailed, res.Failure()}
	}

	if err := d.store.SetLastEmailSent(ctx, c.Email, d.now().UTC()); err != nil {
		// the send happened; a missing contact only loses the cooldown stamp
		d.logger.Warn("failed to update last_email_sent", "email", c.Email, "error", err)
	}

	d.logger.Debug("message sent", "email", c.Email, "message_id", res.MessageID)
	return outcome{models.HistorySent, ""}
}

// deliver calls the transport; a panic in a provider client is returned as
// an error so the run goes on
func (d *Dispatcher) deliver(ctx context.Context, msg *transport.Message) (res *transport.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("transport panic: %v", p)
		}
	}()
	return d.sender.Send(ctx, msg)
}

func (d *Dispatcher) count(stats *models.DispatchStats, out outcome) {
	switch out.status {
	case models.HistorySent:
		stats.Sent++
	case models.HistoryFailed:
		stats.Failed++
		if out.reason == ReasonInvalidEmail {
			stats.InvalidEmail++
		}
	case models.HistorySkipped:
		stats.Skipped++
		switch out.reason {
		case ReasonSuppressed:
			stats.SkippedSuppressed++
		case ReasonExistingCustomer:
			stats.SkippedExistingCustomer++
		case ReasonProviderDomain, ReasonUnknownBusinessDomain:
			stats.SkippedDomainPolicy++
		case ReasonFrequencyLimit:
			stats.SkippedFrequency++
		}
	}
}

// record appends the history entry; a failed write is logged, not fatal
func (d *Dispatcher) record(ctx context.Context, name, addr, domain string, out outcome) {
	metricReason := out.reason
	if out.status == models.HistoryFailed && !isKnownReason(out.reason) {
		metricReason = ReasonTransportError
	}
	metrics.IncDispatch(string(out.status), metricReason)

	rec := &models.HistoryRecord{
		ID:           uuid.New().String(),
		ContactEmail: addr,
		Domain:       domain,
		CampaignName: name,
		SentDate:     d.now().UTC(),
		Status:       out.status,
		Error:        out.reason,
	}
	if err := d.store.AppendHistory(ctx, rec); err != nil {
		d.logger.Error("failed to record history", "email", addr, "status", out.status, "error", err)
	}
}

func isKnownReason(reason string) bool {
	switch reason {
	case ReasonInvalidEmail, ReasonLookupError, ReasonRenderError, ReasonEmptyResult:
		return true
	}
	return false
}
